// Package metrics exposes Prometheus counters/gauges for channel and
// stage activity. Purely observational: nothing in the runtime gates
// behavior on these.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// MessagesSent counts values handed to a Channel's underlying Port,
	// labeled by the channel kind ("pair", "broadcast", "shared", ...).
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shumei",
		Subsystem: "channel",
		Name:      "messages_sent_total",
		Help:      "Values encoded and handed to a channel's port.",
	}, []string{"kind"})

	// MessagesReceived counts values decoded off a Channel's port.
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shumei",
		Subsystem: "channel",
		Name:      "messages_received_total",
		Help:      "Values decoded off a channel's port.",
	}, []string{"kind"})

	// ActorsRegistered tracks live local actors per stage.
	ActorsRegistered = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shumei",
		Subsystem: "stage",
		Name:      "actors_registered",
		Help:      "Local actors currently registered on a stage.",
	}, []string{"stage"})

	// BroadcastSeenHits counts cuckoofilter hits during stage broadcast
	// fan-out — a rough proxy for how often the cycle-breaker actually
	// fires.
	BroadcastSeenHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shumei",
		Subsystem: "stage",
		Name:      "broadcast_seen_hits_total",
		Help:      "SEND messages dropped by the broadcast seen-set.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(MessagesSent, MessagesReceived, ActorsRegistered, BroadcastSeenHits)
}
