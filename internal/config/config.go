// Package config holds the client configuration and the layers it is built
// from: defaults, a TOML file, IRCCLIENT_* environment variables, and flags.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/omochice/toy-irc-client/internal/irc"
	"github.com/omochice/toy-irc-client/internal/logging"
)

// Transports understood by the client.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Defaults for a fresh configuration.
const (
	DefaultServer      = "chicago.il.us.undernet.org"
	DefaultPort        = 6667
	DefaultNick        = "JohnP989"
	DefaultRealName    = "John Pebble"
	DefaultDialTimeout = 30 * time.Second
	DefaultNATSSubject = "ircclient.lines"
)

// Config holds CLI configuration for ircclient.
type Config struct {
	Server    string
	Port      int
	Transport string
	URL       string

	Nick     string
	RealName string

	MinReadSize int
	DialTimeout time.Duration
	Framing     string

	LogLevel    string
	Transcript  string
	MetricsAddr string

	NATSURL     string
	NATSSubject string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Server:      DefaultServer,
		Port:        DefaultPort,
		Transport:   TransportTCP,
		Nick:        DefaultNick,
		RealName:    DefaultRealName,
		MinReadSize: irc.DefaultMinReadSize,
		DialTimeout: DefaultDialTimeout,
		Framing:     irc.FramingLenient.String(),
		LogLevel:    logging.DefaultLevel,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = TransportTCP
	}

	switch c.Transport {
	case TransportTCP:
		if c.Server == "" {
			return fmt.Errorf("server is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
		}
	case TransportWebSocket:
		if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
			return fmt.Errorf("url must start with ws:// or wss:// for the ws transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.Nick == "" {
		return fmt.Errorf("nick is required")
	}
	if strings.ContainsAny(c.Nick, " \r\n") {
		return fmt.Errorf("nick must not contain spaces or line breaks")
	}
	if strings.ContainsAny(c.RealName, "\r\n") {
		return fmt.Errorf("realname must not contain line breaks")
	}
	if c.RealName == "" {
		c.RealName = c.Nick
	}

	if c.MinReadSize <= 0 {
		c.MinReadSize = irc.DefaultMinReadSize
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial timeout must not be negative")
	}

	if _, err := irc.ParseFramingMode(c.Framing); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.NATSURL != "" && c.NATSSubject == "" {
		c.NATSSubject = DefaultNATSSubject
	}

	return nil
}

// Address returns the host:port the tcp transport dials.
func (c Config) Address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// FramingMode returns the parsed framing mode. Call Validate first.
func (c Config) FramingMode() irc.FramingMode {
	m, _ := irc.ParseFramingMode(c.Framing)
	return m
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
