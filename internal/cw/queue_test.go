package cw

import (
	"sync"
	"testing"
)

func TestCharQueue_FIFO(t *testing.T) {
	q := NewCharQueue()
	for _, c := range []byte("CQ DE") {
		if err := q.Push(c); err != nil {
			t.Fatalf("Push(%q) error = %v", c, err)
		}
	}

	var got []byte
	for {
		c, err := q.Pop()
		if err == ErrBufferEmpty {
			break
		}
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		got = append(got, c)
	}
	if string(got) != "CQ DE" {
		t.Errorf("popped %q, want %q", got, "CQ DE")
	}
}

func TestCharQueue_PopEmpty(t *testing.T) {
	q := NewCharQueue()
	if _, err := q.Pop(); err != ErrBufferEmpty {
		t.Errorf("Pop() error = %v, want ErrBufferEmpty", err)
	}
}

func TestCharQueue_FullAtCapacityMinusOne(t *testing.T) {
	q := NewCharQueue()

	for i := 0; i < QueueCapacity-1; i++ {
		if err := q.Push(byte('A' + i%26)); err != nil {
			t.Fatalf("Push #%d error = %v", i+1, err)
		}
	}
	if q.Len() != QueueCapacity-1 {
		t.Errorf("Len() = %d, want %d", q.Len(), QueueCapacity-1)
	}

	// The 64th and 65th pushes are rejected and change nothing
	for i := 0; i < 2; i++ {
		if err := q.Push('X'); err != ErrBufferFull {
			t.Errorf("Push on full queue error = %v, want ErrBufferFull", err)
		}
	}
	if q.Len() != QueueCapacity-1 {
		t.Errorf("Len() after rejected pushes = %d, want %d", q.Len(), QueueCapacity-1)
	}

	for i := 0; i < QueueCapacity-1; i++ {
		c, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop #%d error = %v", i+1, err)
		}
		if want := byte('A' + i%26); c != want {
			t.Fatalf("Pop #%d = %q, want %q", i+1, c, want)
		}
	}
	if _, err := q.Pop(); err != ErrBufferEmpty {
		t.Errorf("Pop() after draining error = %v, want ErrBufferEmpty", err)
	}
}

func TestCharQueue_WrapAround(t *testing.T) {
	q := NewCharQueue()

	for round := 0; round < 5*QueueCapacity; round++ {
		c := byte(round)
		if err := q.Push(c); err != nil {
			t.Fatalf("round %d: Push() error = %v", round, err)
		}
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("round %d: Pop() error = %v", round, err)
		}
		if got != c {
			t.Fatalf("round %d: Pop() = %d, want %d", round, got, c)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestCharQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewCharQueue()
	const total = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Push(byte(i)) == nil {
				i++
			}
		}
	}()

	for i := 0; i < total; {
		c, err := q.Pop()
		if err == ErrBufferEmpty {
			continue
		}
		if c != byte(i) {
			t.Fatalf("Pop() #%d = %d, want %d", i, c, byte(i))
		}
		i++
	}
	wg.Wait()
}

func TestSymbolSequence_RejectsBeyondCapacity(t *testing.T) {
	var seq SymbolSequence
	for i := 0; i < SequenceCapacity; i++ {
		if err := seq.Append(Dash); err != nil {
			t.Fatalf("Append #%d error = %v", i+1, err)
		}
	}
	if err := seq.Append(Dot); err != ErrSequenceFull {
		t.Errorf("Append on full sequence error = %v, want ErrSequenceFull", err)
	}
	if seq.String() != "------" {
		t.Errorf("sequence = %q, want %q", seq.String(), "------")
	}
}

func TestSymbolSequence_IgnoresEmpty(t *testing.T) {
	var seq SymbolSequence
	if err := seq.Append(SymbolEmpty); err != nil {
		t.Errorf("Append(SymbolEmpty) error = %v", err)
	}
	if seq.Len() != 0 {
		t.Errorf("Len() = %d, want 0", seq.Len())
	}
}

func TestSymbolSequence_Reset(t *testing.T) {
	var seq SymbolSequence
	_ = seq.Append(Dot)
	_ = seq.Append(Dash)
	seq.Reset()

	if seq.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", seq.Len())
	}
	if seq.At(0) != SymbolEmpty {
		t.Errorf("At(0) after Reset = %v, want SymbolEmpty", seq.At(0))
	}
}
