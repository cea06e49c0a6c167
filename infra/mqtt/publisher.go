// Package mqtt implements the real-time push transport on Eclipse Paho.
// Logical channels map to topics under a configurable prefix; delivery is
// at-most-once-effort with a bounded publish retry.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/pmallet07/rideflow/config"
	"github.com/pmallet07/rideflow/infra/logger"
)

// Envelope wraps every pushed event.
type Envelope struct {
	MessageID string          `json:"message_id"`
	Event     string          `json:"event"`
	SentAt    int64           `json:"sent_at"`
	Data      json.RawMessage `json:"data"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoPublisher implements push.Publisher over an MQTT broker.
type PahoPublisher struct {
	cli         pahoClient
	topicPrefix string
	qos         byte
	maxRetries  int
	backoff     time.Duration
	log         logger.Logger
}

// NewPahoPublisher connects to the broker.
func NewPahoPublisher(cfg config.MQTTConfig) (*PahoPublisher, error) {
	log := logger.New("mqtt_publisher")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PahoPublisher{
		cli:         c,
		topicPrefix: cfg.TopicPrefix,
		qos:         cfg.QoS,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:         log,
	}, nil
}

// Publish pushes one event to the topic behind the logical channel.
func (p *PahoPublisher) Publish(channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	env := Envelope{
		MessageID: uuid.NewString(),
		Event:     event,
		SentAt:    time.Now().UnixMilli(),
		Data:      data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s", p.topicPrefix, channel)

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, false, body)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugf("sent %s %s to %s", event, env.MessageID, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
