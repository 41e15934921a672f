package config

import "os"

// EnvPrefix is the prefix of every environment variable the client reads.
const EnvPrefix = "IRCCLIENT_"

// ApplyEnvConfig applies configuration from environment variables (IRCCLIENT_*).
// Values override the file config but not flags that have been explicitly set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server", os.Getenv(EnvPrefix+"SERVER"), &cfg.Server)
	s.setString("transport", os.Getenv(EnvPrefix+"TRANSPORT"), &cfg.Transport)
	s.setString("url", os.Getenv(EnvPrefix+"URL"), &cfg.URL)
	s.setString("nick", os.Getenv(EnvPrefix+"NICK"), &cfg.Nick)
	s.setString("realname", os.Getenv(EnvPrefix+"REALNAME"), &cfg.RealName)
	s.setString("framing", os.Getenv(EnvPrefix+"FRAMING"), &cfg.Framing)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("transcript", os.Getenv(EnvPrefix+"TRANSCRIPT"), &cfg.Transcript)
	s.setString("metrics-addr", os.Getenv(EnvPrefix+"METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("nats-url", os.Getenv(EnvPrefix+"NATS_URL"), &cfg.NATSURL)
	s.setString("nats-subject", os.Getenv(EnvPrefix+"NATS_SUBJECT"), &cfg.NATSSubject)

	if err := s.setIntFromString("port", os.Getenv(EnvPrefix+"PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("min-read", os.Getenv(EnvPrefix+"MIN_READ_SIZE"), &cfg.MinReadSize); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv(EnvPrefix+"DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}

	return nil
}
