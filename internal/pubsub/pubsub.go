// Package pubsub fans live fixes out to subscribers keyed by aircraft id.
// When the configured NATS URL is empty an in-process embedded server is
// started on a random 127.0.0.1 port and the client dials it over TCP;
// otherwise the
// client dials the configured external broker. Either way callers see
// the same Bus interface.
package pubsub

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"soar/internal/model"
)

// subjectPrefix namespaces fix-fanout subjects from anything else a
// shared broker might carry.
const subjectPrefix = "soar.fixes."

// Bus publishes fixes and lets consumers subscribe by aircraft id.
type Bus struct {
	nc       *nats.Conn
	embedded *server.Server
}

// Open connects to natsURL, or starts an embedded in-process server when
// natsURL is empty.
func Open(natsURL string) (*Bus, error) {
	if natsURL == "" {
		return openEmbedded()
	}
	nc, err := nats.Connect(natsURL, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect %s: %w", natsURL, err)
	}
	return &Bus{nc: nc}, nil
}

func openEmbedded() (*Bus, error) {
	opts := &server.Options{
		Host:           "127.0.0.1",
		Port:           server.RANDOM_PORT,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("pubsub: start embedded nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("pubsub: embedded nats server did not become ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("pubsub: connect to embedded server: %w", err)
	}
	return &Bus{nc: nc, embedded: srv}, nil
}

// Close drains and closes the client connection, then shuts down the
// embedded server if this Bus owns one.
func (b *Bus) Close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
	}
}

func subjectFor(aircraftID int64) string {
	return subjectPrefix + strconv.FormatInt(aircraftID, 10)
}

// Publish fans a fix out to any subscriber watching its aircraft id.
func (b *Bus) Publish(f *model.Fix) error {
	data, err := encodeFix(f)
	if err != nil {
		return fmt.Errorf("pubsub: encode fix: %w", err)
	}
	if err := b.nc.Publish(subjectFor(f.AircraftID), data); err != nil {
		return fmt.Errorf("pubsub: publish: %w", err)
	}
	return nil
}

// Subscription is a live handle to one aircraft's fix stream.
type Subscription struct {
	sub *nats.Subscription
	ch  chan *model.Fix
}

// Fixes returns the channel new fixes are delivered on.
func (s *Subscription) Fixes() <-chan *model.Fix { return s.ch }

// Unsubscribe stops delivery and closes the channel.
func (s *Subscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	close(s.ch)
	return err
}

// Subscribe returns a Subscription delivering every future fix for one
// aircraft id. The channel is buffered; a slow consumer drops frames
// rather than blocking the publisher.
func (b *Bus) Subscribe(aircraftID int64) (*Subscription, error) {
	ch := make(chan *model.Fix, 64)
	sub, err := b.nc.Subscribe(subjectFor(aircraftID), func(msg *nats.Msg) {
		f, err := decodeFix(msg.Data)
		if err != nil {
			return
		}
		select {
		case ch <- f:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: subscribe: %w", err)
	}
	return &Subscription{sub: sub, ch: ch}, nil
}
