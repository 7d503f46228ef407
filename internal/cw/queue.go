// internal/cw/queue.go
package cw

import (
	"errors"
	"sync/atomic"
)

// QueueCapacity is the storage size of the character queue.
// One slot stays free to tell a full queue from an empty one.
const QueueCapacity = 64

var (
	// ErrBufferFull indicates the queue rejected a push
	ErrBufferFull = errors.New("character queue is full")
	// ErrBufferEmpty indicates there was nothing to pop
	ErrBufferEmpty = errors.New("character queue is empty")
)

// CharQueue is a fixed-size circular buffer of characters.
//
// It is safe for exactly one producer and one consumer running concurrently:
// the write cursor is only stored by Push and the read cursor only by Pop.
// The producer role may move between goroutines (decoder tick, host text link)
// as long as two producers never push at the same time.
type CharQueue struct {
	buf   [QueueCapacity]byte
	write atomic.Uint32
	read  atomic.Uint32
}

// NewCharQueue returns an empty queue.
func NewCharQueue() *CharQueue {
	return &CharQueue{}
}

// Push appends c. It returns ErrBufferFull and leaves the queue unchanged
// when the next write position would reach the read position.
func (q *CharQueue) Push(c byte) error {
	w := q.write.Load()
	next := (w + 1) % QueueCapacity
	if next == q.read.Load() {
		return ErrBufferFull
	}
	q.buf[w] = c
	q.write.Store(next)
	return nil
}

// Pop removes and returns the oldest character, or ErrBufferEmpty.
func (q *CharQueue) Pop() (byte, error) {
	r := q.read.Load()
	if r == q.write.Load() {
		return 0, ErrBufferEmpty
	}
	c := q.buf[r]
	q.read.Store((r + 1) % QueueCapacity)
	return c, nil
}

// Len returns the number of queued characters.
func (q *CharQueue) Len() int {
	w, r := q.write.Load(), q.read.Load()
	return int((w + QueueCapacity - r) % QueueCapacity)
}
