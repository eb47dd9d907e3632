// package testing contains shared testing utilities
package testing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/likesync/internal/shared"
)

// RateLimitError mimics a 429 rejection carrying a Retry-After hint. A negative After means no hint.
type RateLimitError struct {
	After time.Duration
}

func (e *RateLimitError) Error() string { return "429 too many requests" }

func (e *RateLimitError) RetryAfter() (time.Duration, bool) { return e.After, true }

// TimeoutError satisfies [net.Error] with Timeout reporting true.
type TimeoutError struct{}

func (TimeoutError) Error() string   { return "i/o timeout" }
func (TimeoutError) Timeout() bool   { return true }
func (TimeoutError) Temporary() bool { return true }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// TempConfig writes the default configuration to a temporary directory, pointing the database at
// the same directory, and returns the config path.
func TempConfig(t *testing.T, mutate func(*shared.Config)) string {
	t.Helper()

	dir := t.TempDir()
	cfg := shared.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "likesync.db")
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(path, cfg); err != nil {
		t.Fatalf("Failed to write config %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
