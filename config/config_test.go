package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless should default to true")
	}
	if cfg.Site.Name != "vrt" {
		t.Errorf("Site.Name = %q, want vrt", cfg.Site.Name)
	}
	if cfg.Download.ScriptTimeout != 0 {
		t.Errorf("Download.ScriptTimeout = %v, want 0 (no timeout)", cfg.Download.ScriptTimeout)
	}
	if cfg.Download.WaitTimeout != 30*time.Second {
		t.Errorf("Download.WaitTimeout = %v, want 30s", cfg.Download.WaitTimeout)
	}
	if len(cfg.Browser.BlockedResourceTypes) != 4 {
		t.Errorf("BlockedResourceTypes = %v, want 4 defaults", cfg.Browser.BlockedResourceTypes)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("GAZETTE_PORT", "9090")
	t.Setenv("GAZETTE_HEADLESS", "false")
	t.Setenv("GAZETTE_SCRIPT_TIMEOUT", "45s")
	t.Setenv("GAZETTE_API_KEYS", "a, b ,,c")
	t.Setenv("GAZETTE_RATE_RPS", "2.5")
	t.Setenv("GAZETTE_SITE_TOC_URL", "https://news.example.com")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless = true, want false")
	}
	if cfg.Download.ScriptTimeout != 45*time.Second {
		t.Errorf("ScriptTimeout = %v, want 45s", cfg.Download.ScriptTimeout)
	}
	if got := cfg.Auth.APIKeys; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("APIKeys = %q, want [a b c]", got)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Site.TOCURL != "https://news.example.com" {
		t.Errorf("Site.TOCURL = %q", cfg.Site.TOCURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("GAZETTE_PORT", "not-a-number")
	t.Setenv("GAZETTE_WAIT_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want fallback 8080", cfg.Server.Port)
	}
	if cfg.Download.WaitTimeout != 30*time.Second {
		t.Errorf("WaitTimeout = %v, want fallback 30s", cfg.Download.WaitTimeout)
	}
}

func TestLoad_BlockedHosts(t *testing.T) {
	if got := Load().Browser.BlockedHosts; len(got) != 0 {
		t.Errorf("BlockedHosts = %v, want none by default", got)
	}

	t.Setenv("GAZETTE_BLOCKED_HOSTS", "widgets.vrt.be, comments.example")
	got := Load().Browser.BlockedHosts
	if len(got) != 2 || got[0] != "widgets.vrt.be" || got[1] != "comments.example" {
		t.Errorf("BlockedHosts = %v", got)
	}
}
