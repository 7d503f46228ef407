// internal/memory/player.go
package memory

import (
	"context"
	"fmt"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
)

// Sender keys text and idles at the current speed.
type Sender interface {
	Send(ctx context.Context, text string) error
	Wait(ctx context.Context, units int) error
}

// Player keys stored messages.
type Player struct {
	store  *Store
	sender Sender
}

// NewPlayer creates a player reading from store and keying through sender.
func NewPlayer(store *Store, sender Sender) *Player {
	return &Player{store: store, sender: sender}
}

// Play keys the message in slot. With loop set the message repeats, separated
// by LoopGapUnits of silence, until ctx is done.
func (p *Player) Play(ctx context.Context, slot int, loop bool) error {
	text, err := p.store.Load(slot)
	if err != nil {
		return err
	}

	for {
		if err := p.sender.Send(ctx, text); err != nil {
			return fmt.Errorf("play slot %d: %w", slot, err)
		}
		if !loop {
			return nil
		}
		if err := p.sender.Wait(ctx, cw.LoopGapUnits); err != nil {
			return fmt.Errorf("play slot %d: %w", slot, err)
		}
	}
}
