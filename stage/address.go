// Package stage implements identity resolution, routing, spawn and
// register semantics over channel.Channel links.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package stage

import "github.com/google/uuid"

// Address is the globally unique, immutable {actor, stage} handle
// identifying one actor across the whole federation.
type Address struct {
	Actor uuid.UUID `json:"actor"`
	Stage uuid.UUID `json:"stage"`
}

func (a Address) String() string {
	return a.Stage.String() + "/" + a.Actor.String()
}

// Zero reports whether a is the unset Address.
func (a Address) Zero() bool {
	return a.Actor == uuid.Nil && a.Stage == uuid.Nil
}
