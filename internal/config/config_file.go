package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Server      string `toml:"server"`
	Port        int    `toml:"port"`
	Transport   string `toml:"transport"`
	URL         string `toml:"url"`
	Nick        string `toml:"nick"`
	RealName    string `toml:"realname"`
	MinReadSize int    `toml:"min_read_size"`
	DialTimeout string `toml:"dial_timeout"`
	Framing     string `toml:"framing"`
	LogLevel    string `toml:"log_level"`
	Transcript  string `toml:"transcript"`
	MetricsAddr string `toml:"metrics_addr"`
	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.ircclient/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ircclient", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server", fc.Server, &cfg.Server)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("url", fc.URL, &cfg.URL)
	s.setString("nick", fc.Nick, &cfg.Nick)
	s.setString("realname", fc.RealName, &cfg.RealName)
	s.setString("framing", fc.Framing, &cfg.Framing)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("transcript", fc.Transcript, &cfg.Transcript)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("nats-url", fc.NATSURL, &cfg.NATSURL)
	s.setString("nats-subject", fc.NATSSubject, &cfg.NATSSubject)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("min-read", fc.MinReadSize, &cfg.MinReadSize)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
