package channel

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"

	"github.com/meh/shumei/config"
	"github.com/meh/shumei/wire"
)

// lz4Magic prefixes a compressed frame. Plain frames are always JSON
// objects starting with '{', so this byte never collides.
const lz4Magic = 0x00

func lz4Compress(f wire.Frame) (wire.Frame, error) {
	var buf bytes.Buffer
	buf.WriteByte(lz4Magic)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return wire.Frame(buf.Bytes()), nil
}

func lz4TryDecompress(f wire.Frame) (wire.Frame, bool) {
	if len(f) == 0 || f[0] != lz4Magic {
		return f, false
	}
	r := lz4.NewReader(bytes.NewReader(f[1:]))
	out, err := io.ReadAll(r)
	if err != nil {
		return f, false
	}
	return wire.Frame(out), true
}

// MarshalFramed is wire.Marshal plus extra's compression policy, for
// Port implementations that frame Envelopes to bytes across a real
// process boundary (see workeradapter.netPort). A frame above
// CompressAbove bytes is lz4-compressed when Extra.Compressed is set.
func MarshalFramed(env wire.Envelope, extra Extra) (wire.Frame, error) {
	f, err := wire.Marshal(env)
	if err != nil {
		return nil, err
	}
	threshold := extra.CompressAbove
	if threshold <= 0 {
		threshold = config.Default().Transport.CompressAbove
	}
	if extra.Compressed && len(f) > threshold {
		return lz4Compress(f)
	}
	return f, nil
}

// UnmarshalFramed reverses MarshalFramed, transparently decompressing
// a frame tagged with lz4Magic before decoding it.
func UnmarshalFramed(f wire.Frame) (wire.Envelope, error) {
	if out, ok := lz4TryDecompress(f); ok {
		f = out
	}
	return wire.Unmarshal(f)
}
