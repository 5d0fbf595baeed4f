package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderEuropePMC, cfg.Harvest.Provider)
	assert.Equal(t, 2016, cfg.Harvest.StartYear)
	assert.Equal(t, 1, cfg.Harvest.StartMonth)

	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.ThrottleBackoff)

	assert.Equal(t, 50, cfg.EuropePMC.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.EuropePMC.RequestInterval)
	assert.Equal(t, 500, cfg.EuropePMC.MinContentSize)

	assert.Equal(t, 200, cfg.EUtils.LinkBatchSize)
	assert.Equal(t, 10, cfg.EUtils.CheckpointEvery)
	assert.Equal(t, 1000, cfg.EUtils.MinContentSize)

	assert.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.BaseDirectory = "/data"
	cfg.Harvest.Provider = ProviderEUtils

	assert.Equal(t, filepath.Join("/data", "eutils"), cfg.ProviderDirectory())
	assert.Equal(t, filepath.Join("/data", "eutils", "resume_status.txt"), cfg.CheckpointPath())

	cfg.Output.CheckpointFile = "/tmp/cp.txt"
	assert.Equal(t, "/tmp/cp.txt", cfg.CheckpointPath())
}

func TestEUtilsInterval(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.EUtilsInterval())

	cfg.EUtils.APIKey = "secret"
	assert.Equal(t, 100*time.Millisecond, cfg.EUtilsInterval())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PMCHARVEST_PROVIDER", "EUtils")
	t.Setenv("PMCHARVEST_OUTPUT_DIR", "/env/output")
	t.Setenv("PMCHARVEST_START_YEAR", "2019")
	t.Setenv("PMCHARVEST_START_MONTH", "6")
	t.Setenv("PMCHARVEST_END_YEAR", "2020")
	t.Setenv("PMCHARVEST_NCBI_EMAIL", "me@example.org")
	t.Setenv("PMCHARVEST_NCBI_API_KEY", "key123")
	t.Setenv("PMCHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, ProviderEUtils, cfg.Harvest.Provider)
	assert.Equal(t, "/env/output", cfg.Output.BaseDirectory)
	assert.Equal(t, 2019, cfg.Harvest.StartYear)
	assert.Equal(t, 6, cfg.Harvest.StartMonth)
	assert.Equal(t, 2020, cfg.Harvest.EndYear)
	assert.Equal(t, "me@example.org", cfg.EUtils.Email)
	assert.Equal(t, "key123", cfg.EUtils.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Run("invalid integer", func(t *testing.T) {
		t.Setenv("PMCHARVEST_START_YEAR", "twenty")
		err := DefaultConfig().LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PMCHARVEST_START_YEAR")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Harvest.Provider = "crossref" }, "unknown provider"},
		{"month out of range", func(c *Config) { c.Harvest.StartMonth = 13 }, "start month"},
		{"end before start", func(c *Config) { c.Harvest.EndYear = 2010 }, "end year"},
		{"no attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }, "max attempts"},
		{"huge page", func(c *Config) { c.EuropePMC.PageSize = 5000 }, "page size"},
		{"zero batch", func(c *Config) { c.EUtils.LinkBatchSize = 0 }, "link batch size"},
		{"empty output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("aggregates errors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Harvest.StartMonth = 0
		cfg.Logging.Level = "loud"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start month")
		assert.Contains(t, err.Error(), "log level")
	})
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"provider":    "eutils",
		"output":      "/flag/output",
		"start-year":  2018,
		"start-month": 3,
		"end-year":    2019,
		"log-level":   "error",
		"checkpoint":  "",
	})

	assert.Equal(t, ProviderEUtils, cfg.Harvest.Provider)
	assert.Equal(t, "/flag/output", cfg.Output.BaseDirectory)
	assert.Equal(t, 2018, cfg.Harvest.StartYear)
	assert.Equal(t, 3, cfg.Harvest.StartMonth)
	assert.Equal(t, 2019, cfg.Harvest.EndYear)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Empty(t, cfg.Output.CheckpointFile)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Harvest.Provider = ProviderEUtils
	cfg.EUtils.Email = "saved@example.org"
	cfg.RateLimit.RetryDelay = 3 * time.Second
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))
	assert.Equal(t, ProviderEUtils, loaded.Harvest.Provider)
	assert.Equal(t, "saved@example.org", loaded.EUtils.Email)
	assert.Equal(t, 3*time.Second, loaded.RateLimit.RetryDelay)
}

func TestDurationParsing(t *testing.T) {
	yamlContent := `
rate_limit:
  retry_delay: 1500ms
  throttle_backoff: 1m
europepmc:
  request_interval: 250ms
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlContent), &cfg))

	assert.Equal(t, 1500*time.Millisecond, cfg.RateLimit.RetryDelay)
	assert.Equal(t, time.Minute, cfg.RateLimit.ThrottleBackoff)
	assert.Equal(t, 250*time.Millisecond, cfg.EuropePMC.RequestInterval)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		configContent := `
harvest:
  provider: eutils
  start_year: 2017
output:
  base_directory: /file/output
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		t.Setenv("PMCHARVEST_OUTPUT_DIR", "/env/output")
		t.Setenv("PMCHARVEST_START_YEAR", "2018")

		cfg, err := Load(configPath, map[string]interface{}{"start-year": 2020})
		require.NoError(t, err)

		assert.Equal(t, ProviderEUtils, cfg.Harvest.Provider)    // file
		assert.Equal(t, "/env/output", cfg.Output.BaseDirectory) // env over file
		assert.Equal(t, 2020, cfg.Harvest.StartYear)             // flag over env
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		cfg, err := Load("", map[string]interface{}{"provider": "arxiv"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)
		require.NoError(t, os.Chdir(t.TempDir()))

		envContent := "PMCHARVEST_NCBI_API_KEY=dotenv_key\nPMCHARVEST_NCBI_EMAIL=dotenv@example.org\n"
		require.NoError(t, os.WriteFile(".env", []byte(envContent), 0644))
		t.Setenv("PMCHARVEST_NCBI_API_KEY", "")
		os.Unsetenv("PMCHARVEST_NCBI_API_KEY")
		t.Setenv("PMCHARVEST_NCBI_EMAIL", "")
		os.Unsetenv("PMCHARVEST_NCBI_EMAIL")

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "dotenv_key", cfg.EUtils.APIKey)
		assert.Equal(t, "dotenv@example.org", cfg.EUtils.Email)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		assert.Error(t, err)
	})
}
