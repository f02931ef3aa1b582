package channel

// FromQueue wraps an existing in-process queue as a sender+receiver
// Channel with no serialization at all. The caller
// retains ownership of q; Close marks the Channel closed and closes q.
func FromQueue(q chan any) *Channel {
	return &Channel{raw: q, isDirectQueue: true, Kind: "queue"}
}
