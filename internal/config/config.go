// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ColonelBlimp/cwkeyer/internal/cw"
	"github.com/ColonelBlimp/cwkeyer/internal/transceiver"
	"github.com/spf13/viper"
)

const (
	AppName       = "cwkeyer"
	ConfigType    = "yaml"
	DefaultConfig = `# CW Keyer Configuration

# Serial device (key contacts on CTS/DSR, PTT on RTS, host text on RX)
serial_port: "/dev/ttyUSB0"  # leave empty to run without a serial device
baud_rate: 9600

# Operation
input_mode: "keyer"     # keyer = decode the key, host = key text typed or received
keyer_type: "straight"  # straight or paddle
speed: 1                # 0 = 5 WPM, 1 = 10 WPM, 2 = 15 WPM
tone_type: "ptt"        # ptt, tone or ptt+tone
loop_send: false        # repeat message memory playback until stopped

# Sidetone
speaker_out: true       # false mutes the sidetone
tone_frequency: 750     # Sidetone frequency in Hz
sample_rate: 48000      # Audio sample rate in Hz

# Message memory (empty = default under the config directory)
message_db: ""

# Decoded text relay (empty broker = disabled)
mqtt_broker: ""         # e.g. tcp://localhost:1883
mqtt_topic: "cwkeyer/decoded"

# Prometheus metrics (empty = disabled)
metrics_addr: ""        # e.g. :9110

# Output
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Serial device
	SerialPort string `mapstructure:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate"`

	// Operation
	InputMode string `mapstructure:"input_mode"`
	KeyerType string `mapstructure:"keyer_type"`
	Speed     int    `mapstructure:"speed"`
	ToneType  string `mapstructure:"tone_type"`
	LoopSend  bool   `mapstructure:"loop_send"`

	// Sidetone
	SpeakerOut    bool    `mapstructure:"speaker_out"`
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	SampleRate    float64 `mapstructure:"sample_rate"`

	// Message memory
	MessageDB string `mapstructure:"message_db"`

	// Relay
	MQTTBroker string `mapstructure:"mqtt_broker"`
	MQTTTopic  string `mapstructure:"mqtt_topic"`

	// Metrics
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwkeyer/
func Init() error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	appDir := filepath.Join(configDir, AppName)

	// Set defaults
	viper.SetDefault("serial_port", "/dev/ttyUSB0")
	viper.SetDefault("baud_rate", 9600)
	viper.SetDefault("input_mode", "keyer")
	viper.SetDefault("keyer_type", "straight")
	viper.SetDefault("speed", 1)
	viper.SetDefault("tone_type", "ptt")
	viper.SetDefault("loop_send", false)
	viper.SetDefault("speaker_out", true)
	viper.SetDefault("tone_frequency", 750)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("message_db", "")
	viper.SetDefault("mqtt_broker", "")
	viper.SetDefault("mqtt_topic", "cwkeyer/decoded")
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")
	viper.AddConfigPath(appDir)

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			if err = ensureConfigExists(appDir); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// Message memory lives next to the config file unless configured
	if viper.GetString("message_db") == "" {
		viper.Set("message_db", filepath.Join(appDir, "messages"))
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Serial device
	if s.SerialPort != "" && (s.BaudRate < 300 || s.BaudRate > 115200) {
		errs = append(errs, fmt.Errorf("baud_rate must be between 300 and 115200, got %d", s.BaudRate))
	}

	// Operation
	if _, err := transceiver.ParseMode(s.InputMode); err != nil {
		errs = append(errs, fmt.Errorf("input_mode: %w", err))
	}
	if _, err := cw.ParseKeyerMode(s.KeyerType); err != nil {
		errs = append(errs, fmt.Errorf("keyer_type: %w", err))
	}
	if s.Speed < 0 || s.Speed > int(cw.Speed15WPM) {
		errs = append(errs, fmt.Errorf("speed must be 0, 1 or 2, got %d", s.Speed))
	}
	if _, err := cw.ParseToneMode(s.ToneType); err != nil {
		errs = append(errs, fmt.Errorf("tone_type: %w", err))
	}

	// Sidetone
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.ToneFrequency < 300 || s.ToneFrequency > 1500 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 300 and 1500 Hz, got %v", s.ToneFrequency))
	}
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	// Relay
	if s.MQTTBroker != "" {
		if !strings.Contains(s.MQTTBroker, "://") {
			errs = append(errs, fmt.Errorf("mqtt_broker must be a URL such as tcp://host:1883, got %q", s.MQTTBroker))
		}
		if s.MQTTTopic == "" {
			errs = append(errs, errors.New("mqtt_topic is required when mqtt_broker is set"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Keyer converts the operation settings into the codec configuration.
// Call Validate first; invalid names fall back to the defaults.
func (s *Settings) Keyer() cw.KeyerConfig {
	mode, _ := cw.ParseKeyerMode(s.KeyerType)
	tone, _ := cw.ParseToneMode(s.ToneType)
	return cw.KeyerConfig{
		Speed: cw.SpeedLevel(s.Speed),
		Mode:  mode,
		Tone:  tone,
	}
}

// Mode returns the parsed input mode.
func (s *Settings) Mode() transceiver.Mode {
	m, _ := transceiver.ParseMode(s.InputMode)
	return m
}
