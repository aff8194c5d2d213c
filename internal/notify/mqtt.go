package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/green-wellness-tracker/internal/logger"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

const publishTimeout = 5 * time.Second

var ErrNotConnected = errors.New("mqtt client not connected")

// Config configures the reading relay.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retained    bool
}

// ReadingMessage is the payload relayed for one district.
type ReadingMessage struct {
	District    string        `json:"district"`
	SensingTime time.Time     `json:"sensing_time"`
	Temperature sensor.Metric `json:"temperature"`
	WindSpeed   sensor.Metric `json:"wind_speed"`
	Humidity    sensor.Metric `json:"humidity"`
	UV          sensor.Metric `json:"uv"`
	PublishedAt time.Time     `json:"published_at"`
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher relays the latest reading of every district to a broker.
type MQTTPublisher struct {
	client client
	cfg    Config
	l      *logger.Logger
	now    func() time.Time

	mu        sync.RWMutex
	connected bool
}

func NewMQTTPublisher(cfg Config, l *logger.Logger) *MQTTPublisher {
	p := &MQTTPublisher{cfg: cfg, l: l, now: time.Now}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		l.Info("mqtt connected", map[string]any{"broker": cfg.Broker})
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		l.Warning("mqtt connection lost", map[string]any{"broker": cfg.Broker, "err": err})
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the first connection, honouring ctx. With connect retry on,
// paho keeps trying in the background after ctx gives up.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if p.IsConnected() {
		return nil
	}
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			p.setConnected(true)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends one message per reading. It stops at the first failure.
func (p *MQTTPublisher) Publish(ctx context.Context, readings []sensor.Reading) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}
		topic := Topic(p.cfg.TopicPrefix, r.District)
		data, err := json.Marshal(NewReadingMessage(r, p.now()))
		if err != nil {
			return fmt.Errorf("marshal reading: %w", err)
		}

		token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retained, data)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish timeout for topic %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		p.l.Debug("published reading", map[string]any{"topic": topic})
	}
	return nil
}

func (p *MQTTPublisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect closes the connection. Safe to call more than once.
func (p *MQTTPublisher) Disconnect() {
	p.client.Disconnect(250)
	p.setConnected(false)
	p.l.Info("mqtt disconnected")
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func NewReadingMessage(r sensor.Reading, at time.Time) ReadingMessage {
	return ReadingMessage{
		District:    r.District,
		SensingTime: r.SensingTime,
		Temperature: r.Temperature,
		WindSpeed:   r.WindSpeed,
		Humidity:    r.Humidity,
		UV:          r.UV,
		PublishedAt: at,
	}
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Topic builds "<prefix>/<district>/reading" with wildcard characters removed
// from the district.
func Topic(prefix, district string) string {
	d := topicReplacer.Replace(strings.TrimSpace(district))
	if d == "" {
		d = "unknown"
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return d + "/reading"
	}
	return prefix + "/" + d + "/reading"
}
