package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Storage:  StorageConfig{DataPath: "/some/path", CoverPath: "/some/path/covers"},
		Auth:     AuthConfig{AccessTokenDuration: time.Hour},
		Metadata: MetadataConfig{Timeout: 10 * time.Second, CacheTTL: time.Hour},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data path cannot be empty")
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.AccessTokenDuration = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Metadata.Timeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestExpandStoragePaths_Defaults(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, cfg.expandStoragePaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, ".shelf"), cfg.Storage.DataPath)
	assert.Equal(t, filepath.Join(homeDir, ".shelf", "covers"), cfg.Storage.CoverPath)
	assert.Equal(t, filepath.Join(homeDir, ".shelf", "imports"), cfg.Storage.ImportPath())
}

func TestExpandStoragePaths_TildeExpansion(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataPath: "~/books-data"}}

	require.NoError(t, cfg.expandStoragePaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "books-data"), cfg.Storage.DataPath)
}

func TestExpandStoragePaths_ExplicitCoverPath(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{Storage: StorageConfig{
		DataPath:  filepath.Join(tmp, "data"),
		CoverPath: filepath.Join(tmp, "elsewhere"),
	}}

	require.NoError(t, cfg.expandStoragePaths())
	assert.Equal(t, filepath.Join(tmp, "elsewhere"), cfg.Storage.CoverPath)
}

func TestExpandPath_RelativeBecomesAbsolute(t *testing.T) {
	got, err := expandPath("relative/dir", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("SHELF_TEST_VALUE", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "SHELF_TEST_VALUE", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "SHELF_TEST_VALUE", "default"))
	assert.Equal(t, "default", getConfigValue("", "SHELF_TEST_UNSET", "default"))
}

func TestGetBoolConfigValue(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"false", true, false},
		{"nope", true, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, getBoolConfigValue(tt.value, "SHELF_TEST_UNSET", tt.def))
		})
	}
}

func TestGetDurationConfigValue(t *testing.T) {
	d, err := getDurationConfigValue("", "SHELF_TEST_UNSET", "90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = getDurationConfigValue("soon", "SHELF_TEST_UNSET", "90s")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
