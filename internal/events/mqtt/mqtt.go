//file: internal/events/mqtt/mqtt.go

// Package mqtt implements the entity-event transport over MQTT.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"desk-rule-matcher/config"
	"desk-rule-matcher/internal/events"
	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/metrics"
)

// Bus subscribes to entity events and publishes match notifications on
// an MQTT connection. It implements events.Listener and
// events.Publisher.
type Bus struct {
	client  paho.Client
	cfg     *config.MQTTConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New connects to the MQTT broker. Subscription happens in Start.
func New(cfg *config.MQTTConfig, log *logger.Logger, m *metrics.Metrics) (*Bus, error) {
	b := &Bus{
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.safeMetrics(func(m *metrics.Metrics) { m.SetBusConnectionStatus(false) })
			b.logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			b.safeMetrics(func(m *metrics.Metrics) {
				m.SetBusConnectionStatus(true)
				m.IncBusReconnects()
			})
			b.logger.Info("mqtt connection established", "broker", cfg.Broker)
		})

	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	b.client = client

	return b, nil
}

// Start subscribes to the entity-event topic and feeds payloads to the
// processor until ctx is cancelled.
func (b *Bus) Start(ctx context.Context, p *events.Processor) error {
	token := b.client.Subscribe(b.cfg.Topic, 0, func(_ paho.Client, msg paho.Message) {
		if err := p.Enqueue(msg.Payload()); err != nil {
			b.logger.Error("failed to enqueue event",
				"topic", msg.Topic(),
				"error", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", b.cfg.Topic, token.Error())
	}

	b.logger.Info("subscribed to entity events", "topic", b.cfg.Topic)

	go func() {
		<-ctx.Done()
		b.client.Unsubscribe(b.cfg.Topic)
	}()

	return nil
}

// PublishMatch publishes a match notification on the tenant's match
// topic.
func (b *Bus) PublishMatch(n *events.MatchNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := "desk/matches/" + n.TenantID
	if token := b.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	b.logger.Debug("published match notification",
		"topic", topic,
		"rule", n.RuleID,
		"entity", n.EntityID)

	return nil
}

// Close disconnects from the broker
func (b *Bus) Close() {
	b.client.Disconnect(250)
	b.safeMetrics(func(m *metrics.Metrics) { m.SetBusConnectionStatus(false) })
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
