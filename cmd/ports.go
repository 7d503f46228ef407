// cmd/ports.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/cwkeyer/internal/serialport"
	"github.com/ColonelBlimp/cwkeyer/internal/sidetone"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial devices and, with --audio, sidetone outputs",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func init() {
	portsCmd.Flags().Bool("audio", false, "also list audio playback devices")
}

func runPorts(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Serial devices:")
	if len(ports) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, name := range ports {
		fmt.Fprintf(out, "  %s\n", name)
	}

	audio, _ := cmd.Flags().GetBool("audio")
	if !audio {
		return nil
	}

	gen, err := sidetone.New(sidetone.DefaultConfig())
	if err != nil {
		return err
	}
	if err := gen.Init(); err != nil {
		return err
	}
	defer gen.Close()

	devices, err := gen.ListDevices()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Audio playback devices:")
	for i, d := range devices {
		fmt.Fprintf(out, "  [%d] %s\n", i, d.Name())
	}
	return nil
}
