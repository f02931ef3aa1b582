package stage

import "github.com/google/uuid"

// The four stage-link message kinds: STAGE (identification),
// WHOIS_ACTOR (name/id lookup), ACTOR (lookup reply), SEND
// (actor-to-actor datagram). Each is a distinct Go type so the
// router's per-link loop can type-switch on the decoded value.

// StageIdent is the STAGE identification packet exchanged when a link
// is first opened, and re-sent to the parent link on Ready.
type StageIdent struct {
	ID uuid.UUID `json:"id"`
}

// WhoisActor is a name/id lookup request, broadcast to every link
// except where it's known to resolve locally.
type WhoisActor struct {
	ReqID string `json:"reqId"`
	Whois string `json:"whois"`
}

// ActorReply answers a WhoisActor with the resolved address.
type ActorReply struct {
	ReqID string  `json:"reqId"`
	Actor Address `json:"actor"`
	Found bool    `json:"found"`
}

// SendMsg is an actor-to-actor datagram with a single addressing
// field, To. Sender and Seq together key the broadcast seen-set
// consulted before a multi-hop fan-out.
type SendMsg struct {
	Sender  string  `json:"sender"`
	Seq     uint64  `json:"seq"`
	To      Address `json:"to"`
	Message any     `json:"message"`
}
