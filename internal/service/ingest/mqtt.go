package ingest

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sentinel/internal/config"
	"sentinel/internal/logger"
)

const (
	connTimeout    = 10 * time.Second
	reconnInterval = time.Minute
	disconnQuiesce = 250
)

var errSubscribeTimeout = errors.New("failed to subscribe due to timeout reached")

// Subscriber feeds round reports and heartbeats received over MQTT into an Ingestor.
type Subscriber struct {
	client         mqtt.Client
	ingestor       *Ingestor
	roundsTopic    string
	heartbeatTopic string
	qos            byte
	timeout        time.Duration
	logger         *logger.Logger
}

// NewSubscriber connects to the configured broker. Subscriptions are
// (re)established on every connect.
func NewSubscriber(cfg *config.Config, ingestor *Ingestor, logger *logger.Logger) (*Subscriber, error) {
	s := &Subscriber{
		ingestor:       ingestor,
		roundsTopic:    cfg.MQTTRoundsTopic,
		heartbeatTopic: cfg.MQTTHeartbeatTopic,
		qos:            byte(cfg.MQTTQoS),
		timeout:        cfg.MQTTTimeout,
		logger:         logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout).
		SetMaxReconnectInterval(reconnInterval)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info("MQTT connection established with %s", cfg.MQTTBroker)
		if err := s.subscribe(client); err != nil {
			logger.Error("MQTT subscribe failed: %v", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warning("MQTT connection lost: %v", err)
	})

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if ok := token.WaitTimeout(s.timeout); !ok {
		return nil, errors.New("timeout reached while connecting to MQTT broker")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return s, nil
}

func (s *Subscriber) subscribe(client mqtt.Client) error {
	filters := map[string]byte{}
	if s.roundsTopic != "" {
		filters[s.roundsTopic] = s.qos
	}
	if s.heartbeatTopic != "" {
		filters[s.heartbeatTopic] = s.qos
	}
	if len(filters) == 0 {
		return nil
	}

	token := client.SubscribeMultiple(filters, s.messageHandler)
	if ok := token.WaitTimeout(s.timeout); !ok {
		return errSubscribeTimeout
	}
	if token.Error() != nil {
		return token.Error()
	}

	s.logger.Info("Subscribed to MQTT topics %q and %q", s.roundsTopic, s.heartbeatTopic)
	return nil
}

// messageHandler routes a message by topic. Invalid messages are logged and dropped.
func (s *Subscriber) messageHandler(_ mqtt.Client, m mqtt.Message) {
	var err error
	switch m.Topic() {
	case s.roundsTopic:
		_, err = s.ingestor.HandleRoundReport(m.Payload())
	case s.heartbeatTopic:
		_, err = s.ingestor.HandleHeartbeat(m.Payload())
	default:
		s.logger.Warning("Ignoring MQTT message on unexpected topic %s", m.Topic())
	}
	if err != nil {
		s.logger.Warning("Failed to handle MQTT message on %s: %v", m.Topic(), err)
	}

	m.Ack()
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	s.client.Disconnect(disconnQuiesce)
	s.logger.Info("MQTT subscriber disconnected")
}
