package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Event is published whenever the dominant emotion transitions.
type Event struct {
	Emotion       string    `json:"emotion"`
	FaceCount     int       `json:"face_count"`
	AvgConfidence float64   `json:"avg_confidence"`
	At            time.Time `json:"at"`
}

// MQTTPublisher pushes emotion transition events to a broker topic. It
// implements pipeline.Notifier.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *logrus.Logger
}

func NewMQTTPublisher(brokerURL, clientID, topic string, log *logrus.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", brokerURL, err)
	}

	return &MQTTPublisher{client: client, topic: topic, log: log}, nil
}

func (p *MQTTPublisher) EmotionChanged(label string, faceCount int, avgConfidence float64) {
	event := Event{
		Emotion:       label,
		FaceCount:     faceCount,
		AvgConfidence: avgConfidence,
		At:            time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("failed to marshal emotion event")
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	// The caller is the frame loop; wait for the broker ack off its path so
	// a slow broker never stalls the frame cadence.
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.WithError(err).Warn("failed to publish emotion event")
		}
	}()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
