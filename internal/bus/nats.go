package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS-backed bus.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g. "mobd.events"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns settings suitable for a local broker.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "mobd.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATS publishes and consumes timer events over an external NATS broker, one
// subject per timer under the configured prefix.
type NATS struct {
	nc     *nats.Conn
	config NATSConfig
}

// NewNATS connects to the broker.
func NewNATS(config NATSConfig) (*NATS, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATS{nc: nc, config: config}, nil
}

// Publish sends evt on the subject for its timer.
func (n *NATS) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	subject := fmt.Sprintf("%s.%s", n.config.SubjectPrefix, evt.TimerID)
	if err := n.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// Subscribe consumes every event under the prefix. NATS dispatches callbacks
// for a subscription sequentially, so per-subscriber ordering holds.
func (n *NATS) Subscribe(fn func(Event)) (func(), error) {
	subject := n.config.SubjectPrefix + ".>"
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal event")
			return
		}
		fn(evt)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe")
		}
	}, nil
}

// Close drains the connection.
func (n *NATS) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}
