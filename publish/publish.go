// Package publish mirrors the connection state to an MQTT broker.
//
// Topics are rooted at a configurable prefix:
//
//	<prefix>/status                 "online" / "offline" (retained, last will)
//	<prefix>/<entry>/state          latest state (retained)
//	<prefix>/<entry>/dial           dial results
//	<prefix>/<entry>/session        session start and end
package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/vpn"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
	// quiesce is how long Disconnect waits for in-flight work, in milliseconds.
	quiesce = 250
)

// Options configures the broker connection.
type Options struct {
	// Broker is the broker URI, e.g. "tcp://127.0.0.1:1883".
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Username    string
	Password    string
}

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// StateMessage is published on <prefix>/<entry>/state.
type StateMessage struct {
	Entry  string    `json:"entry"`
	State  string    `json:"state"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// DialMessage is published on <prefix>/<entry>/dial.
type DialMessage struct {
	Entry     string `json:"entry"`
	Result    string `json:"result"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// SessionMessage is published on <prefix>/<entry>/session.
type SessionMessage struct {
	ID       string     `json:"id"`
	Entry    string     `json:"entry"`
	Event    string     `json:"event"`
	ClientIP string     `json:"client_ip,omitempty"`
	ServerIP string     `json:"server_ip,omitempty"`
	Started  *time.Time `json:"started_at,omitempty"`
	Result   string     `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Publisher publishes client notifications. It implements vpn.Observer.
type Publisher struct {
	vpn.NopObserver
	client client
	prefix string
	qos    byte

	mu       sync.Mutex
	sessions map[string]string
	wg       sync.WaitGroup
}

var _ vpn.Observer = (*Publisher)(nil)

// Connect connects to the broker and announces the client as online.
func Connect(opts Options) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("%w: MQTT broker is required", common.ErrInvalidArgument)
	}
	prefix := strings.TrimSuffix(opts.TopicPrefix, "/")
	if prefix == "" {
		prefix = common.DefaultMQTTPrefix
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = common.DefaultMQTTClient
	}

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(clientID)
	mo.SetAutoReconnect(true)
	mo.SetConnectTimeout(connectTimeout)
	mo.SetWill(prefix+"/status", "offline", opts.QoS, true)
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
		mo.SetPassword(opts.Password)
	}
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		common.LogWarn("MQTT connection lost: %v", err)
	})

	c := mqtt.NewClient(mo)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}
	common.LogInfo("Connected to MQTT broker %s", opts.Broker)

	p := newPublisher(c, prefix, opts.QoS)
	p.publish(prefix+"/status", true, "online")
	return p, nil
}

func newPublisher(c client, prefix string, qos byte) *Publisher {
	return &Publisher{
		client:   c,
		prefix:   prefix,
		qos:      qos,
		sessions: make(map[string]string),
	}
}

// OnStateChange publishes the retained state of the entry.
func (p *Publisher) OnStateChange(ev vpn.Event) {
	msg := StateMessage{
		Entry:  ev.EntryName,
		State:  ev.State.String(),
		Status: ev.Status.String(),
		Time:   ev.Time,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	p.publishJSON(p.topic(ev.EntryName, "state"), true, msg)
}

// OnDialResult publishes the result of a dial.
func (p *Publisher) OnDialResult(entryName, result string, elapsed time.Duration, err error) {
	msg := DialMessage{
		Entry:     entryName,
		Result:    result,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	p.publishJSON(p.topic(entryName, "dial"), false, msg)
}

// OnSessionStart publishes the start of a session.
func (p *Publisher) OnSessionStart(s vpn.Session) {
	p.mu.Lock()
	p.sessions[s.ID] = s.EntryName
	p.mu.Unlock()

	started := s.StartedAt
	p.publishJSON(p.topic(s.EntryName, "session"), false, SessionMessage{
		ID:       s.ID,
		Entry:    s.EntryName,
		Event:    "start",
		ClientIP: s.LocalIP,
		ServerIP: s.ServerIP,
		Started:  &started,
	})
}

// OnSessionEnd publishes the end of a session started while the
// publisher was registered.
func (p *Publisher) OnSessionEnd(id, result string, err error) {
	p.mu.Lock()
	entry, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()
	if !ok {
		return
	}

	msg := SessionMessage{ID: id, Entry: entry, Event: "end", Result: result}
	if err != nil {
		msg.Error = err.Error()
	}
	p.publishJSON(p.topic(entry, "session"), false, msg)
}

// Close announces the client as offline and disconnects.
func (p *Publisher) Close() {
	p.publish(p.prefix+"/status", true, "offline")
	p.wg.Wait()
	p.client.Disconnect(quiesce)
}

func (p *Publisher) topic(entry, leaf string) string {
	return p.prefix + "/" + topicSegment(entry) + "/" + leaf
}

func (p *Publisher) publishJSON(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		common.LogWarn("Failed to encode MQTT message for %s: %v", topic, err)
		return
	}
	p.publish(topic, retained, payload)
}

// publish hands the message to the client and waits for the delivery in
// the background so observers never block on the broker.
func (p *Publisher) publish(topic string, retained bool, payload interface{}) {
	token := p.client.Publish(topic, p.qos, retained, payload)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			common.LogWarn("Timed out publishing to %s", topic)
			return
		}
		if err := token.Error(); err != nil {
			common.LogWarn("Failed to publish to %s: %v", topic, err)
		}
	}()
}

// topicSegment makes an entry name usable as a single topic level.
func topicSegment(name string) string {
	r := strings.NewReplacer("/", "_", "+", "_", "#", "_")
	if s := r.Replace(name); s != "" {
		return s
	}
	return "_"
}
