package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 10 * time.Second

// ErrMQTTTimeout is returned when the broker does not acknowledge in time.
var ErrMQTTTimeout = errors.New("mqtt timeout")

// MQTTTopic maps a dot-separated topic to MQTT's slash-separated form,
// including the NATS wildcards "*" and ">".
func MQTTTopic(topic string) string {
	parts := strings.Split(topic, ".")
	for i, p := range parts {
		switch p {
		case "*":
			parts[i] = "+"
		case ">":
			parts[i] = "#"
		}
	}
	return strings.Join(parts, "/")
}

// MQTTPublisher publishes JSON-encoded events to an MQTT broker at QoS 1.
type MQTTPublisher struct {
	mu     sync.Mutex
	client paho.Client
}

// NewMQTTPublisher connects to broker (NODEGRAPH_MQTT_URL) as clientID.
// The client reconnects on its own after the first connection.
func NewMQTTPublisher(broker, clientID string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to MQTT at %s: %w", broker, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT at %s: %w", broker, err)
	}
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil || !p.client.IsConnectionOpen() {
		return errors.New("mqtt publisher is not connected")
	}
	token := p.client.Publish(MQTTTopic(topic), 1, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTimeout):
		return fmt.Errorf("publishing %s: %w", topic, ErrMQTTTimeout)
	}
}

func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(1000)
		p.client = nil
	}
	return nil
}
