package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported search providers
const (
	ProviderEuropePMC = "europepmc"
	ProviderEUtils    = "eutils"
)

// Config holds all configuration options for a harvest run
type Config struct {
	// Window range and provider selection
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Retry and throttling behaviour shared by every remote call
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Transport settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Provider specific settings
	EuropePMC EuropePMCConfig `yaml:"europepmc" json:"europepmc"`
	EUtils    EUtilsConfig    `yaml:"eutils" json:"eutils"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// HarvestConfig selects the provider and the calendar range
type HarvestConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	StartYear  int    `yaml:"start_year" json:"start_year"`
	StartMonth int    `yaml:"start_month" json:"start_month"`
	EndYear    int    `yaml:"end_year" json:"end_year"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	CheckpointFile string `yaml:"checkpoint_file" json:"checkpoint_file"`
}

// RateLimitConfig holds retry budget and backoff configuration
type RateLimitConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
	ThrottleBackoff time.Duration `yaml:"throttle_backoff" json:"throttle_backoff"`
}

// DownloadConfig holds transport configuration
type DownloadConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// EuropePMCConfig configures the cursor-style Europe PMC provider
type EuropePMCConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	PageSize        int           `yaml:"page_size" json:"page_size"`
	TopicFilter     string        `yaml:"topic_filter" json:"topic_filter"`
	RequestInterval time.Duration `yaml:"request_interval" json:"request_interval"`
	MinContentSize  int           `yaml:"min_content_size" json:"min_content_size"`
}

// EUtilsConfig configures the enumerate-style NCBI E-utilities provider
type EUtilsConfig struct {
	BaseURL              string        `yaml:"base_url" json:"base_url"`
	Email                string        `yaml:"email" json:"email"`
	APIKey               string        `yaml:"api_key" json:"api_key"`
	TopicFilter          string        `yaml:"topic_filter" json:"topic_filter"`
	LinkBatchSize        int           `yaml:"link_batch_size" json:"link_batch_size"`
	CheckpointEvery      int           `yaml:"checkpoint_every" json:"checkpoint_every"`
	RequestInterval      time.Duration `yaml:"request_interval" json:"request_interval"`
	KeyedRequestInterval time.Duration `yaml:"keyed_request_interval" json:"keyed_request_interval"`
	MinContentSize       int           `yaml:"min_content_size" json:"min_content_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig controls Prometheus export
type MetricsConfig struct {
	Textfile      string `yaml:"textfile" json:"textfile"`
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Harvest: HarvestConfig{
			Provider:   ProviderEuropePMC,
			StartYear:  2016,
			StartMonth: 1,
			EndYear:    2026,
		},
		Output: OutputConfig{
			BaseDirectory: "./pmc_data",
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:     5,
			RetryDelay:      2 * time.Second,
			ThrottleBackoff: 10 * time.Second,
		},
		Download: DownloadConfig{
			Timeout:   60 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; pmcharvest/1.0)",
		},
		EuropePMC: EuropePMCConfig{
			BaseURL:         "https://www.ebi.ac.uk/europepmc/webservices/rest",
			PageSize:        50,
			TopicFilter:     "(TITLE:(breast OR mammary) OR ABS:(breast OR mammary))",
			RequestInterval: 300 * time.Millisecond,
			MinContentSize:  500,
		},
		EUtils: EUtilsConfig{
			BaseURL:              "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			TopicFilter:          `("breast"[Title/Abstract] OR "mammary"[Title/Abstract]) AND "humans"[MeSH Terms] AND free full text[sb]`,
			LinkBatchSize:        200,
			CheckpointEvery:      10,
			RequestInterval:      500 * time.Millisecond,
			KeyedRequestInterval: 100 * time.Millisecond,
			MinContentSize:       1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ProviderDirectory is the content store root for the selected provider
func (c *Config) ProviderDirectory() string {
	return filepath.Join(c.Output.BaseDirectory, c.Harvest.Provider)
}

// CheckpointPath is the checkpoint file for the selected provider
func (c *Config) CheckpointPath() string {
	if c.Output.CheckpointFile != "" {
		return c.Output.CheckpointFile
	}
	return filepath.Join(c.ProviderDirectory(), "resume_status.txt")
}

// EUtilsInterval picks the inter-request delay allowed by NCBI for this key setup
func (c *Config) EUtilsInterval() time.Duration {
	if c.EUtils.APIKey != "" {
		return c.EUtils.KeyedRequestInterval
	}
	return c.EUtils.RequestInterval
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if provider := os.Getenv("PMCHARVEST_PROVIDER"); provider != "" {
		c.Harvest.Provider = strings.ToLower(provider)
	}
	if outputDir := os.Getenv("PMCHARVEST_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if checkpoint := os.Getenv("PMCHARVEST_CHECKPOINT_FILE"); checkpoint != "" {
		c.Output.CheckpointFile = checkpoint
	}

	if err := envInt("PMCHARVEST_START_YEAR", &c.Harvest.StartYear); err != nil {
		return err
	}
	if err := envInt("PMCHARVEST_START_MONTH", &c.Harvest.StartMonth); err != nil {
		return err
	}
	if err := envInt("PMCHARVEST_END_YEAR", &c.Harvest.EndYear); err != nil {
		return err
	}
	if err := envInt("PMCHARVEST_MAX_ATTEMPTS", &c.RateLimit.MaxAttempts); err != nil {
		return err
	}

	// NCBI contact details and token are passed through as-is
	if email := os.Getenv("PMCHARVEST_NCBI_EMAIL"); email != "" {
		c.EUtils.Email = email
	}
	if apiKey := os.Getenv("PMCHARVEST_NCBI_API_KEY"); apiKey != "" {
		c.EUtils.APIKey = apiKey
	}

	if logLevel := os.Getenv("PMCHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if textfile := os.Getenv("PMCHARVEST_METRICS_TEXTFILE"); textfile != "" {
		c.Metrics.Textfile = textfile
	}

	return nil
}

func envInt(key string, target *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*target = val
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".pmcharvest.yaml",
		".pmcharvest.yml",
		filepath.Join(home, ".config", "pmcharvest", "config.yaml"),
		filepath.Join(home, ".config", "pmcharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Harvest.Provider {
	case ProviderEuropePMC, ProviderEUtils:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want %s or %s)", c.Harvest.Provider, ProviderEuropePMC, ProviderEUtils))
	}

	if c.Harvest.StartMonth < 1 || c.Harvest.StartMonth > 12 {
		errs = append(errs, errors.New("start month must be between 1 and 12"))
	}
	if c.Harvest.StartYear < 1900 {
		errs = append(errs, errors.New("start year must be 1900 or later"))
	}
	if c.Harvest.EndYear < c.Harvest.StartYear {
		errs = append(errs, errors.New("end year cannot precede start year"))
	}

	if c.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.RateLimit.RetryDelay < 0 || c.RateLimit.ThrottleBackoff < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.EuropePMC.PageSize <= 0 || c.EuropePMC.PageSize > 1000 {
		errs = append(errs, errors.New("europepmc page size must be between 1 and 1000"))
	}
	if c.EUtils.LinkBatchSize <= 0 {
		errs = append(errs, errors.New("eutils link batch size must be positive"))
	}
	if c.EUtils.CheckpointEvery <= 0 {
		errs = append(errs, errors.New("eutils checkpoint interval must be positive"))
	}
	if c.EuropePMC.MinContentSize < 0 || c.EUtils.MinContentSize < 0 {
		errs = append(errs, errors.New("minimum content size cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// May contain the NCBI API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if provider, ok := flags["provider"].(string); ok && provider != "" {
		c.Harvest.Provider = strings.ToLower(provider)
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if checkpoint, ok := flags["checkpoint"].(string); ok && checkpoint != "" {
		c.Output.CheckpointFile = checkpoint
	}
	if year, ok := flags["start-year"].(int); ok && year > 0 {
		c.Harvest.StartYear = year
	}
	if month, ok := flags["start-month"].(int); ok && month > 0 {
		c.Harvest.StartMonth = month
	}
	if year, ok := flags["end-year"].(int); ok && year > 0 {
		c.Harvest.EndYear = year
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if textfile, ok := flags["metrics-textfile"].(string); ok && textfile != "" {
		c.Metrics.Textfile = textfile
	}
	if addr, ok := flags["metrics-listen"].(string); ok && addr != "" {
		c.Metrics.ListenAddress = addr
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pmcharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
