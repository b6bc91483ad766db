// Package secrets resolves credentials and API keys from outside the code
// and config file: the environment, mounted secret files, or a .env file.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Well-known secret names.
const (
	LoginEmail    = "LOGIN_EMAIL"
	LoginPassword = "LOGIN_PASSWORD"
	CaptchaAPIKey = "CAPTCHA_API_KEY"
)

// DefaultPrefix namespaces the environment variables.
const DefaultPrefix = "YTSCRAPE_"

// ErrNotFound means no source defines the secret.
var ErrNotFound = errors.New("secrets: not found")

// Store looks secrets up by name. For name N it tries, in order, the
// environment variable <Prefix>N, the file named by <Prefix>N_FILE, and the
// .env file the store was opened with.
type Store struct {
	Prefix string

	dotenv map[string]string
	getenv func(string) (string, bool)
}

// Open returns a store backed by the process environment and, when
// dotenvPath names an existing file, its entries. A missing file is not an
// error; a malformed one is.
func Open(dotenvPath string) (*Store, error) {
	s := &Store{Prefix: DefaultPrefix, getenv: os.LookupEnv}
	if dotenvPath == "" {
		return s, nil
	}
	env, err := godotenv.Read(dotenvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("secrets: read %s: %w", dotenvPath, err)
	}
	s.dotenv = env
	return s, nil
}

// Get returns the secret called name.
func (s *Store) Get(name string) (string, error) {
	key := s.Prefix + name
	getenv := s.getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}

	if v, ok := getenv(key); ok && v != "" {
		return v, nil
	}
	if p, ok := getenv(key + "_FILE"); ok && p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("secrets: read %s from file: %w", name, err)
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	}
	if v, ok := s.dotenv[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s (set %s or %s_FILE)", ErrNotFound, name, key, key)
}

// Lookup is Get with a missing secret reported as ok=false.
func (s *Store) Lookup(name string) (string, bool, error) {
	v, err := s.Get(name)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
