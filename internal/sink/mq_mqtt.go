package sink

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTBackend publishes MQ sink payloads to a topic on an MQTT broker.
type MQTTBackend struct {
	client mqtt.Client
	topic  string
}

// NewMQTTBackend connects to broker and constructs an MQTT-backed
// transport for the MQ sink.
func NewMQTTBackend(broker, clientID, topic string) (*MQTTBackend, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt backend: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt backend: connect to %s: %w", broker, err)
	}

	return &MQTTBackend{client: client, topic: topic}, nil
}

// Publish implements Backend.
func (b *MQTTBackend) Publish(ctx context.Context, payload []byte) error {
	token := b.client.Publish(b.topic, 1, false, payload)
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Backend.
func (b *MQTTBackend) Close() error {
	b.client.Disconnect(250)
	return nil
}
