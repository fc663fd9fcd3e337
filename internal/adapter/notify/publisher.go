package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bpdiary/internal/config"
	"bpdiary/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the publisher needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes notifications as JSON to an MQTT topic.
type MQTTPublisher struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTTPublisher connects to the broker in cfg.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTPublisher(client, cfg.Topic, cfg.QoS), nil
}

func newMQTTPublisher(client mqttClient, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

// Ready reports an error while the broker connection is down.
func (p *MQTTPublisher) Ready() error {
	if !p.client.IsConnected() {
		return errors.New("mqtt broker not connected")
	}
	return nil
}

// Publish sends n and waits for the broker to accept it.
func (p *MQTTPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// LogPublisher writes notifications to the log. It is used when no broker
// is configured.
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: logger.OrNop(log)}
}

// Publish logs n.
func (p *LogPublisher) Publish(_ context.Context, n Notification) error {
	p.log.Info(n.Title,
		zap.String("reminder_id", n.ReminderID),
		zap.String("body", n.Body),
		zap.Stringer("at", n.At),
		zap.Time("fired_at", n.FiredAt),
	)
	return nil
}
