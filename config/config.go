// Package config holds the tunables that the wire/channel/stage
// layers need, constructed explicitly rather than reached for via a
// hidden global.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package config

import "time"

// Config bundles every tunable a Runtime needs. Zero value is not
// meant to be used directly; call Default().
type Config struct {
	// Transport controls channel/port behavior.
	Transport TransportConfig
	// Broadcast controls the stage router's cycle-breaker.
	Broadcast BroadcastConfig
	// Housekeep controls the stage's periodic observational jobs.
	Housekeep HousekeepConfig
}

type TransportConfig struct {
	// SendBurst is carried here but read by no channel or port; Send
	// never blocks on an internal queue bound.
	SendBurst int
	// CompressAbove is the frame size in bytes above which a channel
	// with Extra.Compressed set lz4-compresses a frame, when its
	// Extra.CompressAbove is zero. A zero value here compresses every
	// such frame.
	CompressAbove int
	// IdleTeardown is carried here but read by no port; dedicated and
	// shared worker ports are not torn down on inactivity.
	IdleTeardown time.Duration
}

type BroadcastConfig struct {
	// SeenCapacity bounds the cuckoo filter used to break routing
	// cycles (see the stage router's broadcastSend).
	SeenCapacity uint
}

type HousekeepConfig struct {
	// ProxyLogInterval is how often a Runtime logs its process-wide
	// live remote.Proxy count (observation only, never a reaper).
	ProxyLogInterval time.Duration
}

// Default returns a Config with production-sane defaults.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			SendBurst:     256,
			CompressAbove: 32 * 1024,
			IdleTeardown:  2 * time.Minute,
		},
		Broadcast: BroadcastConfig{
			SeenCapacity: 1 << 16,
		},
		Housekeep: HousekeepConfig{
			ProxyLogInterval: 5 * time.Minute,
		},
	}
}
