// Package config tests cover YAML loading and defaulting.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadDefaults verifies an empty file yields defaulted values.
func TestLoadDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cdrive.yaml")
	if err := os.WriteFile(p, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "info" {
		t.Fatalf("log level=%q", c.Log.Level)
	}
	if c.HTTP.Port != 8420 {
		t.Fatalf("port=%d", c.HTTP.Port)
	}
	if c.Storage.DefaultQuotaMB != 8192 {
		t.Fatalf("default quota=%d", c.Storage.DefaultQuotaMB)
	}
}

// TestLoadRejectsInvalidPort ensures validation catches bad values.
func TestLoadRejectsInvalidPort(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cdrive.yaml")
	if err := os.WriteFile(p, []byte("http:\n  port: 99999\n"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

// TestLoadTrimsBaseURL normalizes a trailing slash.
func TestLoadTrimsBaseURL(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cdrive.yaml")
	if err := os.WriteFile(p, []byte("http:\n  base_url: https://drive.example.com/\n"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTP.BaseURL != "https://drive.example.com" {
		t.Fatalf("base_url=%q", c.HTTP.BaseURL)
	}
}
