// cmd/memory.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ColonelBlimp/cwkeyer/internal/config"
	"github.com/ColonelBlimp/cwkeyer/internal/console"
	"github.com/ColonelBlimp/cwkeyer/internal/memory"
	"github.com/ColonelBlimp/cwkeyer/internal/transceiver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the message memory slots",
	Long: fmt.Sprintf(`Six message slots of up to %d characters each. Messages can be
typed, recorded from the key, imported from YAML and keyed back.`, memory.MaxMessageLength),
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all message slots",
	Args:  cobra.NoArgs,
	RunE:  runMemoryList,
}

var memorySaveCmd = &cobra.Command{
	Use:   "save SLOT TEXT...",
	Short: "Store text in a slot",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMemorySave,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear SLOT",
	Short: "Empty a slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryClear,
}

var memoryPlayCmd = &cobra.Command{
	Use:   "play SLOT",
	Short: "Key the message in a slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryPlay,
}

var memoryRecordCmd = &cobra.Command{
	Use:   "record SLOT",
	Short: "Record a message into a slot",
	Long: `Records into the slot until it is full or Ctrl-C is pressed. In keyer mode
the key is decoded; in host mode typed or received text is keyed and recorded.
The previous message is kept if nothing was recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryRecord,
}

var memoryLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Import slots from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryLoad,
}

var memoryExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write all stored slots as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMemoryExport,
}

func init() {
	memoryPlayCmd.Flags().BoolP("loop", "l", false, "repeat until interrupted (default from loop_send)")

	memoryCmd.AddCommand(
		memoryListCmd,
		memorySaveCmd,
		memoryClearCmd,
		memoryPlayCmd,
		memoryRecordCmd,
		memoryLoadCmd,
		memoryExportCmd,
	)
}

func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", memory.ErrInvalidSlot, arg)
	}
	return slot, nil
}

func openStore(s *config.Settings) (*memory.Store, error) {
	store, err := memory.Open(s.MessageDB)
	if err != nil {
		return nil, fmt.Errorf("open message memory: %w", err)
	}
	return store, nil
}

// withStore loads the settings and runs fn against the message store
func withStore(fn func(s *config.Settings, store *memory.Store) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := openStore(s)
	if err != nil {
		return err
	}
	err = fn(s, store)
	if cerr := store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func runMemoryList(cmd *cobra.Command, _ []string) error {
	return withStore(func(_ *config.Settings, store *memory.Store) error {
		msgs, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range msgs {
			if m.Empty() {
				fmt.Fprintf(out, "%d: (empty)\n", m.Slot)
				continue
			}
			fmt.Fprintf(out, "%d: %s\n", m.Slot, m.Text)
		}
		return nil
	})
}

func runMemorySave(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	return withStore(func(_ *config.Settings, store *memory.Store) error {
		if err := store.Save(slot, text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved slot %d\n", slot)
		return nil
	})
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return withStore(func(_ *config.Settings, store *memory.Store) error {
		if err := store.Clear(slot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared slot %d\n", slot)
		return nil
	})
}

func runMemoryPlay(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}

	return withStore(func(s *config.Settings, store *memory.Store) error {
		loop := s.LoopSend
		if cmd.Flags().Changed("loop") {
			loop, _ = cmd.Flags().GetBool("loop")
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		st, err := openStation(ctx, s, stationConfig{mode: transceiver.Host, out: cmd.OutOrStdout()})
		if err != nil {
			return err
		}

		err = memory.NewPlayer(store, st.engine).Play(ctx, slot, loop)
		if cerr := st.close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}

func runMemoryRecord(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}

	return withStore(func(s *config.Settings, store *memory.Store) error {
		// Reject a bad slot before waiting for the operator
		if _, err := store.Load(slot); err != nil && !errors.Is(err, memory.ErrEmptySlot) {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		// In host mode the typed or received text is keyed as it is recorded
		rec := memory.NewRecorder()
		st, err := openStation(ctx, s, stationConfig{
			mode:  s.Mode(),
			sinks: []transceiver.Sink{rec},
			out:   cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		interactive := console.IsTerminal(os.Stdin)
		source := "key"
		if s.Mode() == transceiver.Host {
			source = "type"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Recording slot %d, %s the message (Ctrl-C to finish)\n", slot, source)
		if interactive {
			st.display.SetRawTerminal(true)
		}
		err = recordUntilFull(ctx, st, rec, s.Debug, interactive)
		if cerr := st.close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		text := rec.Text()
		if text == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing recorded, slot %d unchanged\n", slot)
			return nil
		}
		if err := store.Save(slot, text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved slot %d: %s\n", slot, text)
		return nil
	})
}

// recordUntilFull runs the engine and its inputs until the recorder is full,
// the operator interrupts or ctx is done
func recordUntilFull(ctx context.Context, st *station, rec *memory.Recorder, debug, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-rec.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.engine.Run(gctx) })
	startInputs(gctx, g, st, debug, interactive)

	if err := g.Wait(); err != nil && !errors.Is(err, console.ErrInterrupted) {
		return err
	}
	return nil
}

func runMemoryLoad(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *config.Settings, store *memory.Store) error {
		slots, err := store.ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d slot(s) from %s\n", len(slots), args[0])
		return nil
	})
}

func runMemoryExport(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *config.Settings, store *memory.Store) error {
		if len(args) == 0 {
			return store.ExportYAML(cmd.OutOrStdout())
		}
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		if err := store.ExportYAML(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}
