// Package tallynats provides an embedded NATS server with JetStream as a
// pub/sub backend for tally applications.
package tallynats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delaneyj/toolbelt/embeddednats"
	"github.com/nats-io/nats.go"

	"github.com/ryanhamamura/tally"
)

// ErrNoMessage is returned by Last when nothing has been retained for a subject.
var ErrNoMessage = errors.New("tallynats: no message")

// NATS implements tally.PubSub using an embedded NATS server with JetStream.
type NATS struct {
	server *embeddednats.Server
	nc     *nats.Conn
	js     nats.JetStreamContext
}

// New starts an embedded NATS server with JetStream enabled and returns a
// ready-to-use NATS instance. The server stores data in dataDir and shuts
// down when ctx is cancelled.
func New(ctx context.Context, dataDir string) (*NATS, error) {
	ns, err := embeddednats.New(ctx, embeddednats.WithDirectory(dataDir))
	if err != nil {
		return nil, fmt.Errorf("tallynats: start server: %w", err)
	}
	ns.WaitForServer()

	nc, err := ns.Client()
	if err != nil {
		ns.Close()
		return nil, fmt.Errorf("tallynats: connect client: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		ns.Close()
		return nil, fmt.Errorf("tallynats: init jetstream: %w", err)
	}

	return &NATS{server: ns, nc: nc, js: js}, nil
}

// StreamConfig describes a JetStream stream retaining published messages.
type StreamConfig struct {
	Name              string
	Subjects          []string
	MaxMsgs           int64
	MaxMsgsPerSubject int64
	MaxAge            time.Duration
}

// EnsureStream creates the stream or updates it to match cfg.
func EnsureStream(n *NATS, cfg StreamConfig) error {
	sc := &nats.StreamConfig{
		Name:              cfg.Name,
		Subjects:          cfg.Subjects,
		Retention:         nats.LimitsPolicy,
		MaxMsgs:           cfg.MaxMsgs,
		MaxMsgsPerSubject: cfg.MaxMsgsPerSubject,
		MaxAge:            cfg.MaxAge,
	}
	if sc.MaxMsgs == 0 {
		sc.MaxMsgs = -1
	}
	if sc.MaxMsgsPerSubject == 0 {
		sc.MaxMsgsPerSubject = -1
	}
	_, err := n.js.StreamInfo(cfg.Name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = n.js.AddStream(sc)
	case err == nil:
		_, err = n.js.UpdateStream(sc)
	}
	if err != nil {
		return fmt.Errorf("tallynats: ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}

// Publish sends data to the given subject using core NATS publish.
// JetStream captures messages automatically if a matching stream exists.
func (n *NATS) Publish(subject string, data []byte) error {
	return n.nc.Publish(subject, data)
}

// Subscribe creates a core NATS subscription for real-time fan-out delivery.
func (n *NATS) Subscribe(subject string, handler func(data []byte)) (tally.Subscription, error) {
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Last returns the most recent message a stream retained for subject, or
// ErrNoMessage.
func (n *NATS) Last(subject string) ([]byte, error) {
	stream, err := n.js.StreamNameBySubject(subject)
	if err != nil {
		if errors.Is(err, nats.ErrNoMatchingStream) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("tallynats: lookup stream for %s: %w", subject, err)
	}
	msg, err := n.js.GetLastMsg(stream, subject)
	if err != nil {
		if errors.Is(err, nats.ErrMsgNotFound) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("tallynats: last message on %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Close shuts down the client connection and embedded server.
func (n *NATS) Close() error {
	n.nc.Close()
	return n.server.Close()
}
