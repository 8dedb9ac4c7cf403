package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeFile(t, "watch.yaml", `
tracing_enabled: true
catalog:
  base_url: https://www.sheinindia.in
  page_size: 80
  request_timeout: 25s
classify:
  men_category_ids: ["2513", "2497"]
  default_category: men
poll:
  poll_interval_seconds: 45
  men_first: false
  max_alerts_per_cycle: 10
port: 9091
`)

	fc, err := ReadFile(path)
	require.NoError(t, err)

	want := map[string]string{
		"TRACING_ENABLED":         "true",
		"CATALOG_BASE_URL":        "https://www.sheinindia.in",
		"CATALOG_PAGE_SIZE":       "80",
		"CATALOG_REQUEST_TIMEOUT": "25s",
		"MEN_CATEGORY_IDS":        "2513,2497",
		"DEFAULT_CATEGORY":        "men",
		"POLL_INTERVAL_SECONDS":   "45",
		"MEN_FIRST":               "false",
		"MAX_ALERTS_PER_CYCLE":    "10",
		"PORT":                    "9091",
	}
	assert.Equal(t, want, fc.Env())
}

func TestReadFile_Errors(t *testing.T) {
	t.Run("TC-1: missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("TC-2: unknown key", func(t *testing.T) {
		path := writeFile(t, "watch.yaml", "poll:\n  interval: 30\n")
		_, err := ReadFile(path)
		assert.ErrorContains(t, err, "parse config file")
	})

	t.Run("TC-3: wrong type", func(t *testing.T) {
		path := writeFile(t, "watch.yaml", "poll:\n  poll_interval_seconds: soon\n")
		_, err := ReadFile(path)
		assert.Error(t, err)
	})
}

func TestApplyFile_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "watch.yaml", `
log_level: debug
poll:
  grace_period_cycles: 5
  poll_interval_seconds: 60
`)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("GRACE_PERIOD_CYCLES", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")

	applied, err := ApplyFile(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"GRACE_PERIOD_CYCLES", "POLL_INTERVAL_SECONDS"}, applied)

	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "5", os.Getenv("GRACE_PERIOD_CYCLES"))
	assert.Equal(t, "60", os.Getenv("POLL_INTERVAL_SECONDS"))
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "WATCH_DOTENV_A=from-file\nWATCH_DOTENV_B=from-file\n")
	t.Setenv("WATCH_DOTENV_A", "from-env")
	t.Setenv("WATCH_DOTENV_B", "")
	require.NoError(t, os.Unsetenv("WATCH_DOTENV_B"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-env", os.Getenv("WATCH_DOTENV_A"))
	assert.Equal(t, "from-file", os.Getenv("WATCH_DOTENV_B"))
}
