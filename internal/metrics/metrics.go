// Package metrics exposes the relay's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks currently connected clients.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_clients",
			Help: "Number of currently connected clients",
		},
	)

	// OpenRooms tracks rooms currently held by the registry.
	OpenRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_open_rooms",
			Help: "Number of rooms currently held by the registry",
		},
	)

	// CommandsRelayed counts broadcast commands accepted from room
	// members. Incremented once per command, not per delivery.
	CommandsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_commands_relayed_total",
			Help: "Broadcast commands accepted for fan-out",
		},
	)

	// CommandsDelivered counts per-member deliveries of broadcast
	// commands.
	CommandsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_commands_delivered_total",
			Help: "Per-member deliveries of broadcast commands",
		},
	)

	// FramingErrors counts connections dropped due to malformed frames.
	FramingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_framing_errors_total",
			Help: "Connections dropped due to malformed frames",
		},
	)

	// ProtocolErrors counts SEND_ERROR replies issued to clients.
	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_protocol_errors_total",
			Help: "Protocol errors reported to clients",
		},
	)
)
