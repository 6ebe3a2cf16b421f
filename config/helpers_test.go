package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// relativeTo returns dir relative to the working directory, the form LoadWithEnv expects.
func relativeTo(t *testing.T, dir string) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	rel, err := filepath.Rel(wd, dir)
	if err != nil {
		t.Fatalf("rel: %v", err)
	}

	return rel
}
