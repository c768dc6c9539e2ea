package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := New()
	s, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, DefaultDBPath, s.DBPath)
	require.Equal(t, DefaultModelProvider, s.ModelProvider)
	require.Equal(t, DefaultMaxToolIterations, s.MaxToolIterations)
	require.Equal(t, DefaultHTTPTimeout, s.HTTPTimeout)
	require.Equal(t, DefaultSessionIdleTimeout, s.SessionIdleTimeout)
	require.Equal(t, "info", s.Logging().Level)
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_REPO", "acme/movies")
	t.Setenv("GEMINI_API_KEY", "gem")

	s, err := Load(New())
	require.NoError(t, err)
	require.Equal(t, "tok", s.GitHubToken)
	require.Equal(t, "acme/movies", s.GitHubRepo)
	require.Equal(t, "gem", s.GoogleAPIKey)
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("MOVIECHAT_DB_PATH", "/data/movies.db")
	t.Setenv("MOVIECHAT_HTTP_TIMEOUT", "5s")

	s, err := Load(New())
	require.NoError(t, err)
	require.Equal(t, "/data/movies.db", s.DBPath)
	require.Equal(t, 5*time.Second, s.HTTPTimeout)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--max-tool-iterations", "3", "--model-provider", "dummy"}))

	s, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, 3, s.MaxToolIterations)
	require.Equal(t, "dummy", s.ModelProvider)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moviechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db-path: other.db\ngithub-repo: acme/support\n"), 0o600))

	v := New()
	require.NoError(t, ReadConfigFile(v, path))
	s, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "other.db", s.DBPath)
	require.Equal(t, "acme/support", s.GitHubRepo)
}

func TestValidate(t *testing.T) {
	v := New()
	v.Set("model-provider", "llama-on-a-toaster")
	_, err := Load(v)
	require.Error(t, err)

	v = New()
	v.Set("max-tool-iterations", 0)
	_, err = Load(v)
	require.Error(t, err)
}
