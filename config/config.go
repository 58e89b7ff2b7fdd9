package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dsddns/common"
	"dsddns/log"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const DefaultTTL = 300

type Config struct {
	Provider  ProviderConfig `toml:"provider" json:"provider" yaml:"provider"`
	Log       Log            `toml:"log" json:"log" yaml:"log"`
	Hostnames []string       `toml:"hostnames" json:"hostnames" yaml:"hostnames"`
	Sources   []IPSource     `toml:"sources,omitempty" json:"sources,omitempty" yaml:"sources,omitempty"`
}

type ProviderConfig struct {
	Token       string             `toml:"token" json:"token" yaml:"token"`
	AccountID   string             `toml:"account_id" json:"account_id" yaml:"account_id"`
	Environment common.Environment `toml:"environment" json:"environment" yaml:"environment"`
	TTL         int                `toml:"ttl" json:"ttl" yaml:"ttl"`
	RecordID    int64              `toml:"record_id,omitempty" json:"record_id,omitempty" yaml:"record_id,omitempty"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Encoding  *string        `toml:"encoding" json:"encoding" yaml:"encoding"`
	InfoPath  *[]string      `toml:"info_path" json:"info_path" yaml:"info_path"`
	ErrorPath *[]string      `toml:"error_path" json:"error_path" yaml:"error_path"`
}

type IPSource struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Source string         `toml:"source" json:"source" yaml:"source"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type IPSourceSimpleConfig struct {
	Timeout common.Duration `mapstructure:"timeout"`
}

type IPSourceTraceConfig struct {
	Timeout      common.Duration `mapstructure:"timeout"`
	ForceAddress string          `mapstructure:"force_address"`
	IPHost       bool            `mapstructure:"ip_host"`
}

type IPSourceLocalConfig struct {
	Probe        string          `mapstructure:"probe"`
	Timeout      common.Duration `mapstructure:"timeout"`
	AllowPrivate bool            `mapstructure:"allow_private"`
}

type IPSourceInterfaceConfig struct {
	Select       common.IPSelectMode `mapstructure:"select"`
	AllowPrivate bool                `mapstructure:"allow_private"`
	Exclude      []common.CIDR       `mapstructure:"exclude"`
	Include      []common.CIDR       `mapstructure:"include"`
}

// DefaultSources is the fallback echo endpoint chain used when no sources
// are configured. Order matters: endpoints are tried top to bottom.
func DefaultSources() []IPSource {
	return []IPSource{
		{Type: "simple", Source: "https://api.ipify.org"},
		{Type: "simple", Source: "https://checkip.amazonaws.com"},
		{Type: "simple", Source: "https://icanhazip.com"},
		{Type: "simple", Source: "https://ifconfig.me/ip"},
	}
}

// Load builds the effective configuration: .env file, then the optional
// config file, then environment variable overrides, then defaults. The
// returned Config is complete and validated; nothing reads the environment
// after this point.
func Load(ctx context.Context, path string) (*Config, error) {
	ctx = log.SWith(ctx, log.Stage("init:config"))

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.S(ctx).Errorw("failed loading .env file", zap.Error(err))
			return nil, fmt.Errorf("failed loading .env file: %w", err)
		}
	}

	c := &Config{}

	if path != "" {
		if err := c.decodeFile(path); err != nil {
			log.S(ctx).Errorw("failed loading config file", "path", path, zap.Error(err))
			return nil, err
		}
	}

	if err := c.applyEnv(); err != nil {
		log.S(ctx).Errorw("bad environment variable", zap.Error(err))
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		log.S(ctx).Errorw("invalid configuration", zap.Error(err))
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.S(ctx).Infow("configuration loaded",
		"hostnames", c.Hostnames,
		"environment", c.Provider.Environment.String(),
		"account_id", c.Provider.AccountID,
		"ttl", c.Provider.TTL,
		"sources", len(c.Sources))

	return c, nil
}

func (c *Config) decodeFile(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed opening config file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	switch {
	case strings.HasSuffix(path, ".toml"):
		err = toml.NewDecoder(f).Decode(c)
	case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
		err = yaml.NewDecoder(f).Decode(c)
	case strings.HasSuffix(path, ".json"):
		err = json.NewDecoder(f).Decode(c)
	default:
		return fmt.Errorf("unknown config file format: %s", path)
	}

	if err != nil {
		return fmt.Errorf("failed decoding config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DNSIMPLE_TOKEN"); v != "" {
		c.Provider.Token = v
	}

	if v := os.Getenv("DNSIMPLE_ACCOUNT_ID"); v != "" {
		c.Provider.AccountID = v
	}

	if v := os.Getenv("DNSIMPLE_SANDBOX"); v != "" {
		if strings.EqualFold(v, "true") {
			c.Provider.Environment = common.Sandbox
		} else {
			c.Provider.Environment = common.Production
		}
	}

	if v := os.Getenv("HOSTNAMES"); v != "" {
		c.Hostnames = splitHostnames(v)
	}

	if v := os.Getenv("DNSIMPLE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DNSIMPLE_TTL %q: %w", v, err)
		}
		c.Provider.TTL = n
	}

	if v := os.Getenv("DNSIMPLE_RECORD_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DNSIMPLE_RECORD_ID %q: %w", v, err)
		}
		c.Provider.RecordID = n
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		paths := []string{"stderr", v}
		c.Log.InfoPath = &paths
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Provider.TTL == 0 {
		c.Provider.TTL = DefaultTTL
	}

	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
}

func (c *Config) Validate() error {
	if c.Provider.Token == "" {
		return errors.New("provider token not configured, set DNSIMPLE_TOKEN or provider.token")
	}

	if len(c.Hostnames) == 0 {
		return errors.New("no hostnames configured, set HOSTNAMES or hostnames")
	}

	if c.Provider.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %d", c.Provider.TTL)
	}

	if c.Provider.RecordID < 0 {
		return fmt.Errorf("record_id must be positive, got %d", c.Provider.RecordID)
	}

	if c.Provider.RecordID != 0 && len(c.Hostnames) != 1 {
		return errors.New("record_id override requires exactly one hostname")
	}

	for _, s := range c.Sources {
		if s.Type == "" {
			return errors.New("source with empty type")
		}
	}

	return nil
}

func splitHostnames(s string) []string {
	var hostnames []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hostnames = append(hostnames, h)
		}
	}

	return hostnames
}
