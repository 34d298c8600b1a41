package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Event kinds, used as the last topic level
const (
	KindTransition = "transition"
	KindLink       = "link"
)

// ErrNotConnected is returned by Publish before Connect succeeds or after the
// broker connection is lost
var ErrNotConnected = errors.New("not connected to broker")

// Event is one receiver event as published on the wire
type Event struct {
	ID    string    `json:"id"`
	Kind  string    `json:"-"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	Cause string    `json:"cause"`
	At    time.Time `json:"at"`
}

// Encode returns the JSON payload for ev
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// Publisher delivers events off the poll goroutine
type Publisher interface {
	Publish(ev Event) error
	Close()
}

// MQTTConfig holds broker settings
type MQTTConfig struct {
	Broker         string
	Port           uint32
	ClientID       string
	Topic          string
	Username       string
	Password       string
	QoS            uint8
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTPublisher publishes events to "<topic>/<kind>" and keeps a retained
// "<topic>/status" of online/offline via the broker's last will.
type MQTTPublisher struct {
	client    mqtt.Client
	cfg       MQTTConfig
	mu        sync.RWMutex
	connected bool
}

// NewMQTTPublisher configures the client. It does not connect.
func NewMQTTPublisher(cfg MQTTConfig) *MQTTPublisher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	p := &MQTTPublisher{cfg: cfg}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetWill(p.StatusTopic(), "offline", cfg.QoS, true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = mqtt.NewClient(opts)
	return p
}

// Topic returns the topic events of kind are published on
func (p *MQTTPublisher) Topic(kind string) string {
	return p.cfg.Topic + "/" + kind
}

// StatusTopic returns the retained online/offline topic
func (p *MQTTPublisher) StatusTopic() string {
	return p.cfg.Topic + "/status"
}

// Connect dials the broker
func (p *MQTTPublisher) Connect() error {
	log.Printf("[MQTT] Connecting to %s:%d", p.cfg.Broker, p.cfg.Port)

	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("connection timeout after %v", p.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

// IsConnected reports whether the broker connection is up
func (p *MQTTPublisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.client.IsConnected()
}

// Publish sends ev as JSON
func (p *MQTTPublisher) Publish(ev Event) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	payload, err := Encode(ev)
	if err != nil {
		return err
	}

	return p.publish(p.Topic(ev.Kind), payload, false)
}

func (p *MQTTPublisher) publish(topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publish timeout for topic: %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed for topic %s: %w", topic, err)
	}
	return nil
}

// Close marks the node offline and disconnects
func (p *MQTTPublisher) Close() {
	if p.IsConnected() {
		if err := p.publish(p.StatusTopic(), []byte("offline"), true); err != nil {
			log.Printf("[MQTT] %v", err)
		}
	}

	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.client.Disconnect(250)
	log.Printf("[MQTT] Disconnected")
}

func (p *MQTTPublisher) onConnect(client mqtt.Client) {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	log.Printf("[MQTT] Connection established")
	client.Publish(p.StatusTopic(), p.cfg.QoS, true, "online")
}

func (p *MQTTPublisher) onConnectionLost(client mqtt.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	log.Printf("[MQTT] Connection lost: %v", err)
}

// MemoryPublisher records events in memory
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

// NewMemoryPublisher creates an empty recorder
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records ev, or returns the injected error
func (m *MemoryPublisher) Publish(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// SetError makes subsequent publishes fail with err
func (m *MemoryPublisher) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Events returns a copy of the recorded events
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Close marks the publisher closed
func (m *MemoryPublisher) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Closed reports whether Close was called
func (m *MemoryPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
