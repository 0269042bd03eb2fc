package eventing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds connection settings.
type NATSConfig struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Connect dials NATS with reconnect handling that logs state changes.
func Connect(cfg NATSConfig, logger *log.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("eventing: empty nats url")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Printf("nats disconnected: err=%v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("nats reconnected: url=%s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventing: connect nats: %w", err)
	}
	return conn, nil
}

// MessagePublisher is the subset of *nats.Conn the publisher needs.
type MessagePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes enveloped events on a subject prefix.
type NATSPublisher struct {
	conn   MessagePublisher
	prefix string
}

// NewNATSPublisher constructs a publisher. Events go to prefix + "." + event type.
func NewNATSPublisher(conn MessagePublisher, prefix string) (*NATSPublisher, error) {
	if conn == nil {
		return nil, errors.New("eventing: nil nats connection")
	}
	if prefix == "" {
		return nil, errors.New("eventing: empty subject prefix")
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish frames payload as eventType and sends it with the event id as the
// JetStream dedupe header.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, payload any, meta Meta) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	envelope, err := BuildEnvelope(eventType, payload, meta)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return Envelope{}, err
	}
	msg := nats.NewMsg(envelope.Subject(p.prefix))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, envelope.EventID)
	if err := p.conn.PublishMsg(msg); err != nil {
		return Envelope{}, fmt.Errorf("eventing: publish %s: %w", msg.Subject, err)
	}
	return envelope, nil
}
