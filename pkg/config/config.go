package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"addrscope/pkg/models"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = ".addrscope.json"

// TokenConfig holds configuration for a fungible token contract.
type TokenConfig struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Address  string `json:"address" yaml:"address"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// ChainConfig holds configuration for one chain family.
type ChainConfig struct {
	Family      models.ChainFamily `json:"family" yaml:"family"`
	Name        string             `json:"name" yaml:"name"`
	APIURL      string             `json:"api_url" yaml:"api_url"`
	APIKey      string             `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv   string             `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	RPCURLs     []string           `json:"rpc_urls,omitempty" yaml:"rpc_urls,omitempty"`
	ChainID     int64              `json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	ExplorerURL string             `json:"explorer_url,omitempty" yaml:"explorer_url,omitempty"`
	Tokens      []TokenConfig      `json:"tokens" yaml:"tokens"`

	// keyFromEnv marks an APIKey filled by ApplyEnv, which SaveConfig must not write.
	keyFromEnv bool
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	PageSize              int    `json:"page_size" yaml:"page_size"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	SessionTTLSeconds     int    `json:"session_ttl_seconds" yaml:"session_ttl_seconds"`
	TokenDecimals         int    `json:"token_decimals" yaml:"token_decimals"`
	RedisURL              string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
}

// RequestTimeout is the bound applied to every single upstream call.
func (g GlobalConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// SessionTTL is how long an idle session survives in an expiring store.
func (g GlobalConfig) SessionTTL() time.Duration {
	return time.Duration(g.SessionTTLSeconds) * time.Second
}

// AddressURL links addr on the chain's block explorer, or returns "" when no
// explorer is configured. Tronscan routes through a hash fragment.
func (c ChainConfig) AddressURL(addr string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	base := strings.TrimRight(c.ExplorerURL, "/")
	if c.Family == models.TronLike {
		return base + "/#/address/" + addr
	}
	return base + "/address/" + addr
}

// Config is the whole file.
type Config struct {
	Chains []ChainConfig
	Global GlobalConfig
}

// Chain returns the configuration for family f.
func (c Config) Chain(f models.ChainFamily) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.Family == f {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		PageSize:              models.PageSize,
		RequestTimeoutSeconds: 10,
		SessionTTLSeconds:     1800,
		TokenDecimals:         4,
	}
}

// DefaultChains is the built-in registry used when no config file exists.
func DefaultChains() []ChainConfig {
	return []ChainConfig{
		{
			Family:      models.EVMMain,
			Name:        "Ethereum",
			APIURL:      "https://api.etherscan.io/api",
			APIKeyEnv:   "ETHERSCAN_API_KEY",
			ChainID:     1,
			ExplorerURL: "https://etherscan.io",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
				{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
			},
		},
		{
			Family:      models.EVMSide,
			Name:        "BNB Smart Chain",
			APIURL:      "https://api.bscscan.com/api",
			APIKeyEnv:   "BSCSCAN_API_KEY",
			ChainID:     56,
			ExplorerURL: "https://bscscan.com",
			Tokens: []TokenConfig{
				{Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
				{Symbol: "USDC", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Decimals: 18},
			},
		},
		{
			Family:      models.TronLike,
			Name:        "Tron",
			APIURL:      "https://api.trongrid.io",
			APIKeyEnv:   "TRONGRID_API_KEY",
			ExplorerURL: "https://tronscan.org",
		},
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfigFromFile reads path, falling back to the built-in defaults when it
// does not exist. API keys missing from the file are filled from the environment.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := Config{Chains: DefaultChains(), Global: DefaultGlobalConfig()}
		cfg.ApplyEnv(os.Getenv)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()

	var cfg Config
	if isYAML(path) {
		cfg, err = LoadYAMLConfig(f)
	} else {
		cfg, err = LoadConfig(f)
	}
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// fileConfig mirrors the on-disk layout; pointer fields distinguish "absent" from zero.
type fileConfig struct {
	Chains                []ChainConfig `json:"chains" yaml:"chains"`
	PageSize              *int          `json:"page_size" yaml:"page_size"`
	RequestTimeoutSeconds *int          `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	SessionTTLSeconds     *int          `json:"session_ttl_seconds" yaml:"session_ttl_seconds"`
	TokenDecimals         *int          `json:"token_decimals" yaml:"token_decimals"`
	RedisURL              string        `json:"redis_url" yaml:"redis_url"`
}

func LoadConfig(r io.Reader) (Config, error) {
	var fc fileConfig
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return Config{}, err
	}
	return fc.build(), nil
}

func LoadYAMLConfig(r io.Reader) (Config, error) {
	var fc fileConfig
	if err := yaml.NewDecoder(r).Decode(&fc); err != nil {
		return Config{}, err
	}
	return fc.build(), nil
}

func (fc fileConfig) build() Config {
	chains := fc.Chains
	if len(chains) == 0 {
		chains = DefaultChains()
	}

	globalCfg := DefaultGlobalConfig()
	if fc.PageSize != nil {
		globalCfg.PageSize = *fc.PageSize
	}
	if fc.RequestTimeoutSeconds != nil {
		globalCfg.RequestTimeoutSeconds = *fc.RequestTimeoutSeconds
	}
	if fc.SessionTTLSeconds != nil {
		globalCfg.SessionTTLSeconds = *fc.SessionTTLSeconds
	}
	if fc.TokenDecimals != nil {
		globalCfg.TokenDecimals = *fc.TokenDecimals
	}
	globalCfg.RedisURL = fc.RedisURL

	return Config{Chains: chains, Global: globalCfg}
}

// ApplyEnv fills empty API keys from the environment variable named by APIKeyEnv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for i := range c.Chains {
		ch := &c.Chains[i]
		if ch.APIKey != "" || ch.APIKeyEnv == "" {
			continue
		}
		ch.APIKey = getenv(ch.APIKeyEnv)
		ch.keyFromEnv = ch.APIKey != ""
	}
	if c.Global.RedisURL == "" {
		c.Global.RedisURL = getenv("ADDRSCOPE_REDIS_URL")
	}
}

// Validate checks the structural rules every component relies on.
func (c Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("validation failed: configuration must have at least one chain")
	}
	seen := make(map[models.ChainFamily]bool)
	for i, ch := range c.Chains {
		if !ch.Family.Valid() {
			return fmt.Errorf("validation failed: chain at index %d has unknown family %q", i, ch.Family)
		}
		if seen[ch.Family] {
			return fmt.Errorf("validation failed: family %s configured twice", ch.Family)
		}
		seen[ch.Family] = true
		if strings.TrimSpace(ch.APIURL) == "" {
			return fmt.Errorf("validation failed: chain %s has no API URL", ch.Family)
		}
		for _, t := range ch.Tokens {
			if strings.TrimSpace(t.Address) == "" {
				return fmt.Errorf("validation failed: token %s on %s has no contract address", t.Symbol, ch.Family)
			}
			if t.Decimals < 0 {
				return fmt.Errorf("validation failed: token %s on %s has negative decimals", t.Symbol, ch.Family)
			}
		}
	}
	if c.Global.PageSize <= 0 {
		return fmt.Errorf("validation failed: page_size must be positive")
	}
	if c.Global.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("validation failed: request_timeout_seconds must be positive")
	}
	return nil
}

// SaveConfig writes cfg as JSON, keeping a timestamped backup of the previous file.
// API keys filled from the environment are not written back; keys that were in
// the file are kept.
func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	chains := make([]ChainConfig, len(cfg.Chains))
	copy(chains, cfg.Chains)
	for i := range chains {
		if chains[i].keyFromEnv {
			chains[i].APIKey = ""
		}
	}

	out := struct {
		Chains                []ChainConfig `json:"chains"`
		PageSize              int           `json:"page_size"`
		RequestTimeoutSeconds int           `json:"request_timeout_seconds"`
		SessionTTLSeconds     int           `json:"session_ttl_seconds"`
		TokenDecimals         int           `json:"token_decimals"`
		RedisURL              string        `json:"redis_url,omitempty"`
	}{
		Chains:                chains,
		PageSize:              cfg.Global.PageSize,
		RequestTimeoutSeconds: cfg.Global.RequestTimeoutSeconds,
		SessionTTLSeconds:     cfg.Global.SessionTTLSeconds,
		TokenDecimals:         cfg.Global.TokenDecimals,
		RedisURL:              cfg.Global.RedisURL,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
