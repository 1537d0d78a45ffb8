package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper()
	cfg, err := Load("nonexistent-config-name")
	if err != nil {
		t.Fatalf("expected defaults-only load to succeed, got %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.EscrowNetwork != "devnet" {
		t.Errorf("expected default network devnet, got %q", cfg.EscrowNetwork)
	}
}

func TestLoadReadsEnvOverride(t *testing.T) {
	resetViper()
	os.Setenv("SERVER_PORT", "9090")
	defer os.Unsetenv("SERVER_PORT")

	cfg, err := Load("nonexistent-config-name")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("expected env override to set port 9090, got %d", cfg.HTTPPort)
	}
}
