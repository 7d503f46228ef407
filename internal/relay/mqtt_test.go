package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  WordPayload
}

// fakeClient implements the parts of mqtt.Client the relay uses
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	messages     []published
	publishErr   error
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p WordPayload
	_ = json.Unmarshal(payload.([]byte), &p)
	f.messages = append(f.messages, published{topic: topic, qos: qos, retained: retained, payload: p})
	return doneToken{err: f.publishErr}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeClient) words() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		out = append(out, m.payload.Text)
	}
	return out
}

func newTestRelay(client *fakeClient) *Relay {
	r := New(client, "shack/cw")
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func feed(r *Relay, text string) {
	for i := 0; i < len(text); i++ {
		r.Consume(text[i])
	}
}

func TestRelay_PublishesWords(t *testing.T) {
	client := &fakeClient{}
	r := newTestRelay(client)

	feed(r, "CQ  DE K1ABC ")
	r.Close()

	got := client.words()
	want := []string{"CQ", "DE", "K1ABC"}
	if len(got) != len(want) {
		t.Fatalf("published %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}

	m := client.messages[0]
	if m.topic != "shack/cw" || m.qos != qos || m.retained {
		t.Errorf("published to %q qos %d retained %v, want shack/cw qos %d not retained", m.topic, m.qos, m.retained, qos)
	}
	if m.payload.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", m.payload.Timestamp)
	}
	if !client.disconnected {
		t.Error("Close() did not disconnect")
	}
}

func TestRelay_FlushPartialWord(t *testing.T) {
	client := &fakeClient{}
	r := newTestRelay(client)

	feed(r, "QR")
	if len(client.words()) != 0 {
		t.Fatal("partial word published before a space")
	}
	r.Flush()
	r.Flush()

	if got := client.words(); len(got) != 1 || got[0] != "QR" {
		t.Errorf("published %q, want [QR]", got)
	}
}

func TestRelay_LongRunSplits(t *testing.T) {
	client := &fakeClient{}
	r := newTestRelay(client)

	for i := 0; i < maxWord+3; i++ {
		r.Consume('E')
	}
	r.Close()

	got := client.words()
	if len(got) != 2 || len(got[0]) != maxWord || len(got[1]) != 3 {
		t.Errorf("published lengths %d, want [%d 3]", len(got), maxWord)
	}
}

func TestRelay_PublishErrorDoesNotBlock(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("not connected")}
	r := newTestRelay(client)

	feed(r, "TEST ")
	r.Close()

	if len(client.words()) != 1 {
		t.Errorf("published %d words, want 1 attempt", len(client.words()))
	}
}

func TestConnect_EmptyBroker(t *testing.T) {
	if _, err := Connect("", "shack/cw"); !errors.Is(err, ErrNoBroker) {
		t.Errorf("Connect(\"\") error = %v, want %v", err, ErrNoBroker)
	}
}
