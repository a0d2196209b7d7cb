//file: internal/events/nats/nats.go

// Package nats implements the entity-event transport over NATS.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"desk-rule-matcher/config"
	"desk-rule-matcher/internal/events"
	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/metrics"
)

// Bus subscribes to entity events and publishes match notifications on
// a NATS connection. It implements events.Listener and events.Publisher.
type Bus struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	cfg     *config.NATSConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New connects to the NATS servers. Subscription happens in Start.
func New(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics) (*Bus, error) {
	b := &Bus{
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.safeMetrics(func(m *metrics.Metrics) { m.SetBusConnectionStatus(false) })
			b.logger.Warn("nats connection lost", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.safeMetrics(func(m *metrics.Metrics) {
				m.SetBusConnectionStatus(true)
				m.IncBusReconnects()
			})
			b.logger.Info("nats connection restored", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			b.safeMetrics(func(m *metrics.Metrics) { m.SetBusConnectionStatus(false) })
			b.logger.Info("nats connection closed")
		}),
	}

	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	b.conn = conn
	b.safeMetrics(func(m *metrics.Metrics) { m.SetBusConnectionStatus(true) })

	return b, nil
}

// Start subscribes to the entity-event subject and feeds payloads to
// the processor until ctx is cancelled.
func (b *Bus) Start(ctx context.Context, p *events.Processor) error {
	sub, err := b.conn.Subscribe(b.cfg.Subject, func(msg *nats.Msg) {
		if err := p.Enqueue(msg.Data); err != nil {
			b.logger.Error("failed to enqueue event",
				"subject", msg.Subject,
				"error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.cfg.Subject, err)
	}
	b.sub = sub

	b.logger.Info("subscribed to entity events", "subject", b.cfg.Subject)

	go func() {
		<-ctx.Done()
		if b.sub != nil {
			b.sub.Unsubscribe()
		}
	}()

	return nil
}

// PublishMatch publishes a match notification on the tenant's match
// subject.
func (b *Bus) PublishMatch(n *events.MatchNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := "desk.matches." + n.TenantID
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	b.logger.Debug("published match notification",
		"subject", subject,
		"rule", n.RuleID,
		"entity", n.EntityID)

	return nil
}

// Close drains and closes the connection
func (b *Bus) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	b.conn.Drain()
	b.conn.Close()
}

func (b *Bus) safeMetrics(fn func(*metrics.Metrics)) {
	if b.metrics != nil {
		fn(b.metrics)
	}
}

func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
	}, nil
}
