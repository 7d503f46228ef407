// internal/relay/mqtt.go
// Package relay publishes decoded text to an MQTT broker.
package relay

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// maxWord bounds the buffered word; longer runs are published in pieces
	maxWord        = 64
	publishTimeout = 5 * time.Second
	qos            = 1
)

// ErrNoBroker indicates an empty broker URL
var ErrNoBroker = errors.New("mqtt broker URL is empty")

// WordPayload is one published word.
type WordPayload struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// Relay is an engine sink that publishes each completed word.
type Relay struct {
	client mqtt.Client
	topic  string

	mu   sync.Mutex
	word []byte
	wg   sync.WaitGroup
	now  func() time.Time
}

func generateClientID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "cwkeyer_" + hex.EncodeToString(b)
}

// Connect connects to broker and returns a relay publishing on topic.
func Connect(broker, topic string) (*Relay, error) {
	if broker == "" {
		return nil, ErrNoBroker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(generateClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Publishing decoded text to %s on %s", broker, topic)
	return New(client, topic), nil
}

// New wraps an existing client.
func New(client mqtt.Client, topic string) *Relay {
	return &Relay{
		client: client,
		topic:  topic,
		word:   make([]byte, 0, maxWord),
		now:    time.Now,
	}
}

// Consume buffers c and publishes the word on a space.
func (r *Relay) Consume(c byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c == ' ' {
		r.flushLocked()
		return
	}
	r.word = append(r.word, c)
	if len(r.word) == maxWord {
		r.flushLocked()
	}
}

// Flush publishes a pending partial word.
func (r *Relay) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

func (r *Relay) flushLocked() {
	if len(r.word) == 0 {
		return
	}
	payload, err := json.Marshal(WordPayload{
		Timestamp: r.now().Unix(),
		Text:      string(r.word),
	})
	r.word = r.word[:0]
	if err != nil {
		log.Printf("MQTT: encode word: %v", err)
		return
	}

	token := r.client.Publish(r.topic, qos, false, payload)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("MQTT: publish to %s timed out", r.topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("MQTT: publish to %s: %v", r.topic, err)
		}
	}()
}

// Close publishes the pending word, waits for outstanding publishes and
// disconnects.
func (r *Relay) Close() {
	r.Flush()
	r.wg.Wait()
	r.client.Disconnect(250)
}
