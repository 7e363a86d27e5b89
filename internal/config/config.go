package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Cloudflare CloudflareConfig `yaml:"cloudflare"`
	DNS        DNSConfig        `yaml:"dns"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

type CloudflareConfig struct {
	APIToken string        `yaml:"api_token"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DNSConfig describes the SRV records this service creates.
type DNSConfig struct {
	ParentDomain string        `yaml:"parent_domain"`
	TargetHost   string        `yaml:"target_host"`
	Service      string        `yaml:"service"`
	Proto        string        `yaml:"proto"`
	TTL          int           `yaml:"ttl"`
	Priority     int           `yaml:"priority"`
	Weight       int           `yaml:"weight"`
	SuffixLength int           `yaml:"suffix_length"`
	ZoneCacheTTL time.Duration `yaml:"zone_cache_ttl"` // 0 keeps the zone id for the process lifetime
}

type WebhookConfig struct {
	Secret    string        `yaml:"secret"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit int           `yaml:"rate_limit"` // requests per minute per client IP, 0 disables
}

// DatabaseConfig selects the provisioning ledger. An empty URL disables it.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level       int  `yaml:"level"`
	Development bool `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3003",
			Mode: "release",
		},
		Cloudflare: CloudflareConfig{
			BaseURL: "https://api.cloudflare.com/client/v4",
			Timeout: 10 * time.Second,
		},
		DNS: DNSConfig{
			ParentDomain: "jptr.host",
			TargetHost:   "pelican-server-wings-ds-01.jptr.host",
			Service:      "_minecraft",
			Proto:        "_tcp",
			TTL:          300,
			Priority:     0,
			Weight:       5,
			SuffixLength: 12,
		},
		Webhook: WebhookConfig{
			Timeout:   30 * time.Second,
			RateLimit: 120,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_PATH, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults without consulting the
// environment for overrides (only ${VAR} references inside the file expand).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Mode = getEnv("GIN_MODE", c.Server.Mode)

	c.Cloudflare.APIToken = getEnv("CLOUDFLARE_API_TOKEN", c.Cloudflare.APIToken)
	c.Cloudflare.BaseURL = getEnv("CLOUDFLARE_API_URL", c.Cloudflare.BaseURL)
	c.Cloudflare.Timeout = getEnvDuration("CLOUDFLARE_TIMEOUT", c.Cloudflare.Timeout)

	c.DNS.ParentDomain = getEnv("DNS_PARENT_DOMAIN", c.DNS.ParentDomain)
	c.DNS.TargetHost = getEnv("DNS_TARGET_HOST", c.DNS.TargetHost)
	c.DNS.Service = getEnv("DNS_SRV_SERVICE", c.DNS.Service)
	c.DNS.Proto = getEnv("DNS_SRV_PROTO", c.DNS.Proto)
	c.DNS.TTL = getEnvInt("DNS_TTL", c.DNS.TTL)
	c.DNS.SuffixLength = getEnvInt("DNS_SUFFIX_LENGTH", c.DNS.SuffixLength)
	c.DNS.ZoneCacheTTL = getEnvDuration("DNS_ZONE_CACHE_TTL", c.DNS.ZoneCacheTTL)

	c.Webhook.Secret = getEnv("WEBHOOK_SECRET", c.Webhook.Secret)
	c.Webhook.Timeout = getEnvDuration("WEBHOOK_TIMEOUT", c.Webhook.Timeout)
	c.Webhook.RateLimit = getEnvInt("WEBHOOK_RATE_LIMIT", c.Webhook.RateLimit)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Log.Level = getEnvInt("LOG_LEVEL", c.Log.Level)
	c.Log.Development = getEnvBool("LOG_DEVELOPMENT", c.Log.Development)
}

// Validate checks the static DNS settings. A missing API token is not an
// error here; each provisioning attempt reports it instead.
func (c *Config) Validate() error {
	if _, ok := dns.IsDomainName(c.DNS.ParentDomain); !ok || c.DNS.ParentDomain == "" {
		return fmt.Errorf("DNS_PARENT_DOMAIN %q is not a valid domain name", c.DNS.ParentDomain)
	}
	if _, ok := dns.IsDomainName(c.DNS.TargetHost); !ok || c.DNS.TargetHost == "" {
		return fmt.Errorf("DNS_TARGET_HOST %q is not a valid host name", c.DNS.TargetHost)
	}
	if !strings.HasPrefix(c.DNS.Service, "_") || !strings.HasPrefix(c.DNS.Proto, "_") {
		return fmt.Errorf("SRV service and proto must start with an underscore (got %q, %q)", c.DNS.Service, c.DNS.Proto)
	}
	if c.DNS.SuffixLength < 1 || c.DNS.SuffixLength > 32 {
		return fmt.Errorf("DNS_SUFFIX_LENGTH must be between 1 and 32")
	}
	// Cloudflare: 1 means automatic, otherwise 60..86400
	if c.DNS.TTL != 1 && (c.DNS.TTL < 60 || c.DNS.TTL > 86400) {
		return fmt.Errorf("DNS_TTL must be 1 or between 60 and 86400")
	}
	if c.DNS.Priority < 0 || c.DNS.Priority > 65535 || c.DNS.Weight < 0 || c.DNS.Weight > 65535 {
		return fmt.Errorf("SRV priority and weight must be between 0 and 65535")
	}
	if c.Webhook.Timeout <= 0 || c.Cloudflare.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// SRVPrefix returns "_service._proto".
func (c *DNSConfig) SRVPrefix() string {
	return c.Service + "." + c.Proto
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
