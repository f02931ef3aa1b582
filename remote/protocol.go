// Package remote implements the remote-value RPC protocol: a struct
// or function on one side of a channel.Channel, a Proxy standing in
// for it on the other.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package remote

import "github.com/google/uuid"

// Op is one of the five operation kinds carried over a remote-value
// link.
type Op int

const (
	OpGet Op = iota
	OpSet
	OpDelete
	OpApply
	OpConstruct
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpDelete:
		return "DELETE"
	case OpApply:
		return "APPLY"
	case OpConstruct:
		return "CONSTRUCT"
	default:
		return "UNKNOWN"
	}
}

// request is sent proxy -> handler.
type request struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	Op   Op     `json:"op"`
	Key  string `json:"key,omitempty"`
	Val  any    `json:"val,omitempty"`
	Args []any  `json:"args,omitempty"`
}

// response is sent handler -> proxy, matched to its request by ID+Seq.
type response struct {
	ID     string `json:"id"`
	Seq    uint64 `json:"seq"`
	Result any    `json:"result,omitempty"`
	ErrStr string `json:"err,omitempty"`
}

// newID mints a proxy/handler pairing identifier. Distinct from
// idgen.New, which mints ephemeral port-descriptor IDs — request/response
// correlation IDs have no routing meaning and no need for the
// shortid alphabet idgen uses for wire-compactness, so this uses
// google/uuid's random v4 directly.
func newID() string { return uuid.NewString() }
