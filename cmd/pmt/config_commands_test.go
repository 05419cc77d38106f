package main

import (
	"os"
	"path/filepath"
	"testing"

	"pmt/internal/services"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, code := runCLI(t, env, "config", "validate")
	if code != services.ExitOK {
		t.Fatalf("config validate exit %d", code)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, code = runCLI(t, env, "config", "init", "--path", target)
	if code != services.ExitOK {
		t.Fatalf("config init exit %d", code)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, stderr, code := runCLI(t, env, "config", "init", "--path", target)
	if code == services.ExitOK {
		t.Fatal("expected init to refuse an existing file")
	}
	requireContains(t, stderr, "already exists")
}
