package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "SYSOTEL"
	defaultConfig = "/etc/sysotel/agent.yaml"
	AgentVersion  = "0.3.0"
	ServiceName   = "sysotel-agent"
)

type Config struct {
	NodeID   string
	Hostname string

	ForceEnvironment string
	Collectors       []string

	CollectionInterval    time.Duration
	CollectorErrorBackoff time.Duration
	TransformEnabled      bool

	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string
	OTLPTimeout  time.Duration

	QueueSize    int
	BatchSize    int
	FlushTimeout time.Duration

	ProbeListenAddr string
	ShutdownTimeout time.Duration

	TLSEnabled    bool
	TLSSkipVerify bool
	TLSCAPath     string
	TLSCertPath   string
	TLSKeyPath    string

	LogJSON  bool
	LogLevel string
}

// Load reads configuration from the optional YAML file and the SYSOTEL_*
// environment, environment winning. A missing config file is not an error;
// a malformed one is.
func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("node.id", hostname)
	v.SetDefault("environment.force", "")
	v.SetDefault("collectors", []string{})
	v.SetDefault("collection.interval", 30*time.Second)
	v.SetDefault("collection.error_backoff", 1500*time.Millisecond)
	v.SetDefault("transform.enabled", true)
	v.SetDefault("otlp.endpoint", "127.0.0.1:4317")
	v.SetDefault("otlp.insecure", true)
	v.SetDefault("otlp.headers", map[string]string{})
	v.SetDefault("otlp.timeout", 10*time.Second)
	v.SetDefault("export.queue_size", 1000)
	v.SetDefault("export.batch_size", 100)
	v.SetDefault("export.flush_timeout", 5*time.Second)
	v.SetDefault("probe.addr", "0.0.0.0:9465")
	v.SetDefault("shutdown.timeout", 20*time.Second)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.skip_verify", false)
	v.SetDefault("tls.ca_path", "")
	v.SetDefault("tls.cert_path", "")
	v.SetDefault("tls.key_path", "")
	v.SetDefault("log.json", true)
	v.SetDefault("log.level", "info")

	cfgFile := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG_FILE"))
	if cfgFile == "" {
		cfgFile = defaultConfig
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
			}
		}
	}

	cfg := Config{
		NodeID:                v.GetString("node.id"),
		Hostname:              hostname,
		ForceEnvironment:      strings.ToLower(v.GetString("environment.force")),
		Collectors:            v.GetStringSlice("collectors"),
		CollectionInterval:    v.GetDuration("collection.interval"),
		CollectorErrorBackoff: v.GetDuration("collection.error_backoff"),
		TransformEnabled:      v.GetBool("transform.enabled"),
		OTLPEndpoint:          v.GetString("otlp.endpoint"),
		OTLPInsecure:          v.GetBool("otlp.insecure"),
		OTLPHeaders:           v.GetStringMapString("otlp.headers"),
		OTLPTimeout:           v.GetDuration("otlp.timeout"),
		QueueSize:             v.GetInt("export.queue_size"),
		BatchSize:             v.GetInt("export.batch_size"),
		FlushTimeout:          v.GetDuration("export.flush_timeout"),
		ProbeListenAddr:       v.GetString("probe.addr"),
		ShutdownTimeout:       v.GetDuration("shutdown.timeout"),
		TLSEnabled:            v.GetBool("tls.enabled"),
		TLSSkipVerify:         v.GetBool("tls.skip_verify"),
		TLSCAPath:             v.GetString("tls.ca_path"),
		TLSCertPath:           v.GetString("tls.cert_path"),
		TLSKeyPath:            v.GetString("tls.key_path"),
		LogJSON:               v.GetBool("log.json"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return errors.New("SYSOTEL_NODE_ID is required")
	}
	switch c.ForceEnvironment {
	case "", "container", "proxmox_host", "generic_host":
	default:
		return fmt.Errorf("unsupported forced environment %q", c.ForceEnvironment)
	}
	if c.CollectionInterval <= 0 {
		return errors.New("SYSOTEL_COLLECTION_INTERVAL must be > 0")
	}
	if strings.TrimSpace(c.OTLPEndpoint) == "" {
		return errors.New("SYSOTEL_OTLP_ENDPOINT is required")
	}
	if c.QueueSize <= 0 {
		return errors.New("SYSOTEL_EXPORT_QUEUE_SIZE must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("SYSOTEL_EXPORT_BATCH_SIZE must be > 0")
	}
	if c.BatchSize > c.QueueSize {
		return errors.New("SYSOTEL_EXPORT_BATCH_SIZE must not exceed the queue size")
	}
	if c.FlushTimeout <= 0 {
		return errors.New("SYSOTEL_EXPORT_FLUSH_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("SYSOTEL_PROBE_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SYSOTEL_SHUTDOWN_TIMEOUT must be > 0")
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}
