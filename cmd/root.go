// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/cwkeyer/internal/config"
	"github.com/ColonelBlimp/cwkeyer/internal/console"
	"github.com/ColonelBlimp/cwkeyer/internal/metrics"
	"github.com/ColonelBlimp/cwkeyer/internal/relay"
	"github.com/ColonelBlimp/cwkeyer/internal/transceiver"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "cwkeyer",
	Short: "CW (Morse code) keyer and decoder",
	Long: `A tick-driven CW keyer. In keyer mode the key on the serial device is
decoded to text; in host mode typed or received text is keyed on PTT and sidetone.`,
	RunE:          runKeyer,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("port", "p", "/dev/ttyUSB0", "serial device (empty for none)")
	rootCmd.PersistentFlags().IntP("speed", "s", 1, "speed index: 0 = 5, 1 = 10, 2 = 15 WPM")
	rootCmd.PersistentFlags().StringP("keyer", "k", "straight", "key type: straight or paddle")
	rootCmd.PersistentFlags().StringP("mode", "m", "keyer", "input mode: keyer or host")
	rootCmd.PersistentFlags().StringP("tone", "t", "ptt", "keying output: ptt, tone or ptt+tone")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("serial_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("speed", rootCmd.PersistentFlags().Lookup("speed"))
	viper.BindPFlag("keyer_type", rootCmd.PersistentFlags().Lookup("keyer"))
	viper.BindPFlag("input_mode", rootCmd.PersistentFlags().Lookup("mode"))
	viper.BindPFlag("tone_type", rootCmd.PersistentFlags().Lookup("tone"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(sendCmd, memoryCmd, portsCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings returns validated settings for a command
func loadSettings() (*config.Settings, error) {
	s, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runKeyer(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	sc := stationConfig{mode: s.Mode(), out: cmd.OutOrStdout()}

	var reg *prometheus.Registry
	if s.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		sc.observer = metrics.New(reg)
	}

	if s.MQTTBroker != "" {
		rl, err := relay.Connect(s.MQTTBroker, s.MQTTTopic)
		if err != nil {
			return err
		}
		defer rl.Close()
		sc.sinks = append(sc.sinks, rl)
	}

	st, err := openStation(ctx, s, sc)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Printf("KEYER: close: %v", err)
		}
	}()

	interactive := console.IsTerminal(os.Stdin)
	keyer := st.keyer()
	fmt.Fprintf(cmd.ErrOrStderr(), "cwkeyer: %s mode, %s key, %d WPM, %s output\n",
		st.engine.Mode(), keyer.Mode, keyer.WPM(), keyer.Tone)
	if interactive {
		fmt.Fprintln(cmd.ErrOrStderr(), "Type to send in host mode. Ctrl-T toggles PTT, Ctrl-C exits.")
		st.display.SetRawTerminal(true)
	}

	watchConfig(st.engine, s.Debug)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.engine.Run(gctx) })
	startInputs(gctx, g, st, s.Debug, interactive)
	if reg != nil {
		g.Go(func() error { return metrics.Serve(gctx, s.MetricsAddr, reg) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, console.ErrInterrupted) {
		return err
	}
	return nil
}

// startInputs feeds host text from the serial link and, on a terminal, the
// keyboard into the engine
func startInputs(ctx context.Context, g *errgroup.Group, st *station, debug, interactive bool) {
	if st.port != nil {
		g.Go(func() error { return st.port.ReadText(ctx, hostPush(st.engine, debug)) })
	}
	if interactive {
		in := &console.Input{
			Push:      st.engine.PushChar,
			TogglePTT: st.engine.TogglePTTOverride,
			Debug:     debug,
		}
		g.Go(func() error { return in.Run(ctx, os.Stdin) })
	}
}

// watchConfig applies edits of the config file to the running engine.
// Device settings (port, sidetone, broker) need a restart.
func watchConfig(e *transceiver.Engine, debug bool) {
	viper.OnConfigChange(func(ev fsnotify.Event) {
		if debug {
			log.Printf("KEYER: config changed: %s", ev.Name)
		}
		if err := reloadSettings(e); err != nil {
			log.Printf("KEYER: config change ignored: %v", err)
		}
	})
	viper.WatchConfig()
}

// reloadSettings reconfigures e from the current viper state
func reloadSettings(e *transceiver.Engine) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	keyer := s.Keyer()
	if err := e.Reconfigure(keyer, s.Mode()); err != nil {
		return err
	}
	log.Printf("KEYER: %s mode, %s key, %d WPM, %s output", s.Mode(), keyer.Mode, keyer.WPM(), keyer.Tone)
	return nil
}

// hostPush queues host text; in keyer mode the text is ignored
func hostPush(e *transceiver.Engine, debug bool) func(c byte) error {
	return func(c byte) error {
		err := e.PushChar(c)
		if errors.Is(err, transceiver.ErrHostModeOnly) {
			if debug {
				log.Printf("SERIAL: ignored %q in keyer mode", c)
			}
			return nil
		}
		return err
	}
}
