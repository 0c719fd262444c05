package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/ras"
	"github.com/BojanKomazec/IpSec/vpn"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }

func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []message
	disconnected bool
	err          error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.messages = append(c.messages, message{topic, qos, retained, b})
	return &doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) last(t *testing.T) message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.messages)
	return c.messages[len(c.messages)-1]
}

func TestPublisher_StateChange(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "home/vpn", 1)

	now := time.Unix(1_700_000_000, 0).UTC()
	p.OnStateChange(vpn.Event{
		EntryName: "Office",
		State:     ras.StateConnected,
		Status:    vpn.StatusConnected,
		Time:      now,
	})

	msg := fc.last(t)
	assert.Equal(t, "home/vpn/Office/state", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got StateMessage
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "Office", got.Entry)
	assert.Equal(t, "Connected", got.State)
	assert.Equal(t, "Connected", got.Status)
	assert.Empty(t, got.Error)
	assert.True(t, got.Time.Equal(now))
}

func TestPublisher_StateChangeError(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "ipsec", 0)

	p.OnStateChange(vpn.Event{EntryName: "a/b#", Status: vpn.StatusError, Err: errors.New("link lost")})

	msg := fc.last(t)
	assert.Equal(t, "ipsec/a_b_/state", msg.topic)
	var got StateMessage
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "link lost", got.Error)
}

func TestPublisher_DialResult(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "ipsec", 0)

	p.OnDialResult("Office", vpn.ResultTimeout, 1500*time.Millisecond, errors.New("dial timed out"))

	msg := fc.last(t)
	assert.Equal(t, "ipsec/Office/dial", msg.topic)
	assert.False(t, msg.retained)
	var got DialMessage
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, vpn.ResultTimeout, got.Result)
	assert.Equal(t, int64(1500), got.ElapsedMs)
	assert.Equal(t, "dial timed out", got.Error)
}

func TestPublisher_Session(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "ipsec", 0)

	p.OnSessionStart(vpn.Session{ID: "s1", EntryName: "Office", LocalIP: "10.0.0.2", StartedAt: time.Now()})
	var start SessionMessage
	require.NoError(t, json.Unmarshal(fc.last(t).payload, &start))
	assert.Equal(t, "start", start.Event)
	assert.Equal(t, "10.0.0.2", start.ClientIP)
	require.NotNil(t, start.Started)

	p.OnSessionEnd("s1", vpn.ResultDropped, errors.New("dropped"))
	msg := fc.last(t)
	assert.Equal(t, "ipsec/Office/session", msg.topic)
	var end SessionMessage
	require.NoError(t, json.Unmarshal(msg.payload, &end))
	assert.Equal(t, "end", end.Event)
	assert.Equal(t, vpn.ResultDropped, end.Result)
	assert.Equal(t, "dropped", end.Error)

	fc.mu.Lock()
	count := len(fc.messages)
	fc.mu.Unlock()
	p.OnSessionEnd("unknown", vpn.ResultDropped, nil)
	fc.mu.Lock()
	assert.Len(t, fc.messages, count)
	fc.mu.Unlock()
}

func TestPublisher_Close(t *testing.T) {
	fc := &fakeClient{err: errors.New("not connected")}
	p := newPublisher(fc, "ipsec", 0)

	p.Close()

	msg := fc.last(t)
	assert.Equal(t, "ipsec/status", msg.topic)
	assert.Equal(t, "offline", string(msg.payload))
	assert.True(t, msg.retained)
	assert.True(t, fc.disconnected)
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Options{})
	assert.Error(t, err)
}

func TestTopicSegment(t *testing.T) {
	assert.Equal(t, "Office", topicSegment("Office"))
	assert.Equal(t, "a_b", topicSegment("a/b"))
	assert.Equal(t, "_", topicSegment(""))
}
