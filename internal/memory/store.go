// internal/memory/store.go
// Package memory keeps the keyer's message slots in a Pebble key/value store.
package memory

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/cockroachdb/pebble"
)

const (
	// Slots is the number of message memories
	Slots = 6
	// SlotSize is the stored size of one message in bytes
	SlotSize = 32
	// MaxMessageLength leaves room for the terminator
	MaxMessageLength = SlotSize - 1
	// Terminator ends a stored message and pads the rest of the slot
	Terminator = 0xFF
)

const slotPrefix = "slot|"

var (
	ErrInvalidSlot    = fmt.Errorf("slot must be between 1 and %d", Slots)
	ErrEmptySlot      = errors.New("message slot is empty")
	ErrMessageTooLong = fmt.Errorf("message longer than %d characters", MaxMessageLength)
	ErrInvalidText    = errors.New("message contains characters that cannot be keyed")
	ErrStoreClosed    = errors.New("message store is closed")
)

// Message is the content of one slot.
type Message struct {
	Slot int
	Text string
}

// Empty reports whether the slot holds no text.
func (m Message) Empty() bool {
	return m.Text == ""
}

// EncodeSlot packs text into the fixed slot layout: the characters followed by
// the terminator, padded with terminators. The unknown marker of a mis-keyed
// character is stored as recorded and skipped on playback.
func EncodeSlot(text string) ([SlotSize]byte, error) {
	var b [SlotSize]byte
	if len(text) > MaxMessageLength {
		return b, ErrMessageTooLong
	}
	for i := 0; i < len(text); i++ {
		if !cw.Supported(text[i]) && text[i] != cw.Unknown {
			return b, fmt.Errorf("%w: %q", ErrInvalidText, text[i])
		}
	}
	n := copy(b[:], text)
	for i := n; i < SlotSize; i++ {
		b[i] = Terminator
	}
	return b, nil
}

// DecodeSlot returns the text before the first terminator.
func DecodeSlot(b []byte) string {
	if i := bytes.IndexByte(b, Terminator); i >= 0 {
		b = b[:i]
	}
	if len(b) > MaxMessageLength {
		b = b[:MaxMessageLength]
	}
	return string(b)
}

// Store manages the Pebble database that holds the message slots.
type Store struct {
	mu     sync.Mutex
	db     *pebble.DB
	closed bool
}

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	return open(dir, &pebble.Options{})
}

func open(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open message store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func slotKey(slot int) []byte {
	return []byte(slotPrefix + strconv.Itoa(slot))
}

func checkSlot(slot int) error {
	if slot < 1 || slot > Slots {
		return fmt.Errorf("%w, got %d", ErrInvalidSlot, slot)
	}
	return nil
}

func (s *Store) handle() (*pebble.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.db, nil
}

// Save stores text in slot. Empty text clears the slot.
func (s *Store) Save(slot int, text string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if text == "" {
		return s.Clear(slot)
	}
	b, err := EncodeSlot(text)
	if err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.Set(slotKey(slot), b[:], pebble.Sync); err != nil {
		return fmt.Errorf("save slot %d: %w", slot, err)
	}
	return nil
}

// Load returns the text of slot, or ErrEmptySlot.
func (s *Store) Load(slot int) (string, error) {
	if err := checkSlot(slot); err != nil {
		return "", err
	}
	db, err := s.handle()
	if err != nil {
		return "", err
	}

	value, closer, err := db.Get(slotKey(slot))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrEmptySlot
	}
	if err != nil {
		return "", fmt.Errorf("load slot %d: %w", slot, err)
	}
	text := DecodeSlot(value)
	_ = closer.Close()

	if text == "" {
		return "", ErrEmptySlot
	}
	return text, nil
}

// Clear empties slot.
func (s *Store) Clear(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.Delete(slotKey(slot), pebble.Sync); err != nil {
		return fmt.Errorf("clear slot %d: %w", slot, err)
	}
	return nil
}

// List returns every slot in order, empty ones included.
func (s *Store) List() ([]Message, error) {
	messages := make([]Message, 0, Slots)
	for slot := 1; slot <= Slots; slot++ {
		text, err := s.Load(slot)
		if err != nil && !errors.Is(err, ErrEmptySlot) {
			return nil, err
		}
		messages = append(messages, Message{Slot: slot, Text: text})
	}
	return messages, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
