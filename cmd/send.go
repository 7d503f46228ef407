// cmd/send.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/ColonelBlimp/cwkeyer/internal/transceiver"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send TEXT...",
	Short: "Key text once and exit",
	Long: `Keys the given text on PTT and sidetone at the configured speed.
Characters without a Morse pattern are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := openStation(ctx, s, stationConfig{mode: transceiver.Host, out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	err = st.engine.Send(ctx, strings.Join(args, " "))
	if cerr := st.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
