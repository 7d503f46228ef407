// internal/cw/classifier.go
package cw

// Boundary thresholds in units of idle (key-up) time
const (
	// CommitUnits of release commit the pending symbol
	CommitUnits = 1
	// CharBoundaryUnits of release end the character
	CharBoundaryUnits = 4
	// WordBoundaryUnits of release end the word
	WordBoundaryUnits = 10
	// DashHoldUnits is the minimum hold of a straight-key dash
	DashHoldUnits = 2

	// MaxCount is where the hold and release counters saturate.
	// It exceeds every threshold of the slowest speed preset.
	MaxCount = 0xFF
)

// KeyState is one sample of the key contacts.
// A straight key only uses Dit.
type KeyState struct {
	Dit bool
	Dah bool
}

// Down reports whether any contact is closed.
func (k KeyState) Down() bool {
	return k.Dit || k.Dah
}

// KeyInput provides the key contacts, sampled once per tick.
type KeyInput interface {
	Key() KeyState
}

// Event is a bit set describing what a tick did.
type Event uint8

const (
	// EventSymbol means a symbol was committed to the sequence
	EventSymbol Event = 1 << iota
	// EventChar means a character boundary was processed
	EventChar
	// EventUnknown means the decoded character was Unknown
	EventUnknown
	// EventWord means a word space was emitted
	EventWord
	// EventDropped means the character queue rejected a push
	EventDropped
	// EventOverflow means a symbol did not fit into the sequence
	EventOverflow
)

// Has reports whether all bits of flag are set.
func (e Event) Has(flag Event) bool {
	return e&flag == flag
}

// Classifier turns sampled key states into symbols, characters and word spaces.
//
// Tick must be called once per TickPeriod from a single goroutine. It never
// blocks and never allocates. SetConfig must not run concurrently with Tick.
type Classifier struct {
	config KeyerConfig
	unit   int

	holdCounter    int
	releaseCounter int
	lastSymbol     Symbol
	charPending    bool // true once the current character has been flushed
	wordPending    bool // true once the current word has been flushed

	sequence SymbolSequence
	out      *CharQueue
}

// NewClassifier creates a classifier that pushes decoded characters into out.
func NewClassifier(cfg KeyerConfig, out *CharQueue) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{out: out}
	c.SetConfig(cfg)
	c.Reset()
	return c, nil
}

// SetConfig switches speed and keyer mode. Counters are kept.
func (c *Classifier) SetConfig(cfg KeyerConfig) {
	c.config = cfg
	c.unit = cfg.UnitTicks()
}

// Config returns the active configuration.
func (c *Classifier) Config() KeyerConfig {
	return c.config
}

// Reset returns the classifier to its idle state: long idle, nothing pending.
func (c *Classifier) Reset() {
	c.holdCounter = 0
	c.releaseCounter = MaxCount
	c.lastSymbol = SymbolEmpty
	c.charPending = true
	c.wordPending = true
	c.sequence.Reset()
}

// Tick processes one key sample.
func (c *Classifier) Tick(key KeyState) Event {
	if key.Down() {
		c.keyDown(key)
		return 0
	}
	return c.keyUp()
}

func (c *Classifier) keyUp() Event {
	var ev Event

	if c.releaseCounter < MaxCount {
		c.releaseCounter++
	}

	// End of element: commit the pending symbol
	if c.releaseCounter > c.unit*CommitUnits && c.lastSymbol != SymbolEmpty {
		if err := c.sequence.Append(c.lastSymbol); err != nil {
			ev |= EventOverflow
		} else {
			ev |= EventSymbol
		}
		c.lastSymbol = SymbolEmpty
	}

	// End of character
	if c.releaseCounter > c.unit*CharBoundaryUnits && !c.charPending {
		ev |= EventChar
		if char := Decode(&c.sequence); char != NoCharacter {
			if char == Unknown {
				ev |= EventUnknown
			}
			if err := c.out.Push(char); err != nil {
				ev |= EventDropped
			}
		}
		c.sequence.Reset()
		c.charPending = true
	}

	// End of word
	if c.releaseCounter > c.unit*WordBoundaryUnits && !c.wordPending {
		ev |= EventWord
		if err := c.out.Push(Space); err != nil {
			ev |= EventDropped
		}
		c.wordPending = true
	}

	// Classify the hold that just ended
	if c.holdCounter > 0 {
		if c.config.Mode == Straight {
			if c.holdCounter >= c.unit*DashHoldUnits {
				c.lastSymbol = Dash
			} else {
				c.lastSymbol = Dot
			}
		}
		c.holdCounter = 0
	}

	return ev
}

func (c *Classifier) keyDown(key KeyState) {
	if c.holdCounter < MaxCount {
		c.holdCounter++
	}

	if c.config.Mode == Paddle {
		if key.Dah {
			c.lastSymbol = Dash
		} else {
			c.lastSymbol = Dot
		}
	} else {
		// Straight key: decided on release
		c.lastSymbol = SymbolEmpty
	}

	c.releaseCounter = 0
	c.charPending = false
	c.wordPending = false
}

// Pending returns the symbols of the character in progress.
func (c *Classifier) Pending() string {
	return c.sequence.String()
}
