package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestStore_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "YTSCRAPE_LOGIN_EMAIL=dotenv@example.com\nYTSCRAPE_CAPTCHA_API_KEY=from-dotenv\n")
	keyFile := writeFile(t, dir, "key", "from-file\n")

	t.Setenv("YTSCRAPE_LOGIN_EMAIL", "env@example.com")
	t.Setenv("YTSCRAPE_CAPTCHA_API_KEY_FILE", keyFile)

	s, err := Open(envFile)
	require.NoError(t, err)

	v, err := s.Get(LoginEmail)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", v)

	v, err = s.Get(CaptchaAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)
}

func TestStore_DotenvFallback(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "YTSCRAPE_LOGIN_PASSWORD=\"s3cr#t\"\n")

	s, err := Open(envFile)
	require.NoError(t, err)
	s.getenv = func(string) (string, bool) { return "", false }

	v, err := s.Get(LoginPassword)
	require.NoError(t, err)
	assert.Equal(t, "s3cr#t", v)
}

func TestStore_NotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	s.getenv = func(string) (string, bool) { return "", false }

	_, err = s.Get(CaptchaAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "YTSCRAPE_CAPTCHA_API_KEY")

	v, ok, err := s.Lookup(CaptchaAPIKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestStore_UnreadableSecretFile(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	s.getenv = func(k string) (string, bool) {
		if k == "YTSCRAPE_LOGIN_EMAIL_FILE" {
			return "/nonexistent/secret", true
		}
		return "", false
	}

	_, err = s.Get(LoginEmail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, _, err = s.Lookup(LoginEmail)
	assert.Error(t, err)
}

func TestStore_CustomPrefix(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	s.Prefix = "TEST_"
	t.Setenv("TEST_LOGIN_EMAIL", "p@example.com")

	v, err := s.Get(LoginEmail)
	require.NoError(t, err)
	assert.Equal(t, "p@example.com", v)
}
