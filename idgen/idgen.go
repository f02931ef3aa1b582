// Package idgen generates short ephemeral identifiers (port
// descriptor IDs) and the hashes keying the broadcast seen-set. Stage
// and actor addresses are uuid.UUID values and do not come from here.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package idgen

import (
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// alphabet for generated IDs: avoids characters that are awkward in
// URLs or shell arguments.
const abc = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const (
	// Len is the length of a generated ID, per shortid's own guarantee.
	Len = 9
)

var (
	once sync.Once
	sid  *shortid.Shortid
	tie  uint32
	mu   sync.Mutex
)

func initGenerator() {
	sid, _ = shortid.New(4, abc, uint64(time.Now().UnixNano()))
}

// ID is a short, globally-unique (within the scope of one running
// federation of stages) identifier. It is a plain comparable value so
// it can key maps and be used as the Transfer() association key.
type ID string

func (id ID) String() string { return string(id) }

// Empty reports whether id is the zero value.
func (id ID) Empty() bool { return id == "" }

// New mints a fresh ID.
func New() ID {
	once.Do(initGenerator)
	mu.Lock()
	raw := sid.MustGenerate()
	mu.Unlock()
	return ID(raw)
}

// Hash returns a stable 64-bit digest of id, used to key the
// broadcast-cycle seen-set without retaining the string itself.
func Hash(id ID) uint64 {
	return xxhash.Checksum64S([]byte(id), 0)
}

// HashPair combines a sender ID and a sequence number into the single
// key the broadcast seen-set tracks (sender, seq).
func HashPair(sender ID, seq uint64) uint64 {
	h := xxhash.New64()
	_, _ = h.Write([]byte(sender))
	var b [8]byte
	for i := range b {
		b[i] = byte(seq >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return h.Sum64()
}

// Tie produces a short tie-breaker string, used when two IDs would
// otherwise collide under a lossy digest.
func Tie() string {
	mu.Lock()
	tie++
	t := tie
	mu.Unlock()
	b0 := abc[t&0x3f]
	b1 := abc[(^t)&0x3f]
	b2 := abc[(t>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
