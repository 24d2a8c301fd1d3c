package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"matchsim-service/services"
)

const (
	// MQTT Quality of Service levels
	QoSAtMostOnce  = 0
	QoSAtLeastOnce = 1
	QoSExactlyOnce = 2
)

// MQTTPublisher mirrors live session state onto an MQTT broker so that
// dashboards and mobile clients can follow scores without connecting to
// the service's own WebSocket endpoint.
type MQTTPublisher struct {
	broker   string
	username string
	password string
	client   mqtt.Client
}

// NewMQTTPublisher creates a publisher for the given broker address
func NewMQTTPublisher(broker, username, password string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:   broker,
		username: username,
		password: password,
	}
}

// Connect establishes connection to the MQTT broker
func (p *MQTTPublisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetUsername(p.username)
	opts.SetPassword(p.password)
	opts.SetClientID(fmt.Sprintf("matchsim_%d", time.Now().Unix()))

	if strings.HasPrefix(p.broker, "ssl://") || strings.HasPrefix(p.broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: false})
	}

	// Auto reconnect
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Keep alive
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetCleanSession(true)

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect: %w", token.Error())
	}

	return nil
}

// Disconnect closes the connection to the MQTT broker
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// IsConnected returns whether the client is connected
func (p *MQTTPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Run consumes snapshot and event notifications from the broker and
// republishes them per match. Blocks until the context is cancelled.
func (p *MQTTPublisher) Run(ctx context.Context, broker services.NotificationBroker) error {
	snapshots, err := broker.Subscribe(services.TopicName(services.TopicSessionSnapshot))
	if err != nil {
		return err
	}
	events, err := broker.Subscribe(services.TopicName(services.TopicSessionEvent))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-snapshots:
			if !ok {
				return nil
			}
			p.publish(fmt.Sprintf("matchsim/matches/%d/state", n.MatchID), n.Payload)
		case n, ok := <-events:
			if !ok {
				return nil
			}
			p.publish(fmt.Sprintf("matchsim/matches/%d/events", n.MatchID), n.Payload)
		}
	}
}

func (p *MQTTPublisher) publish(topic string, payload []byte) {
	if !p.IsConnected() {
		return
	}
	token := p.client.Publish(topic, QoSAtMostOnce, false, payload)
	// Fire and forget: a slow broker must not hold up the consumer loop
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Publish to %s failed: %v", topic, token.Error())
		}
	}()
}
