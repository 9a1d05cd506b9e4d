package config

import (
	"testing"
)

func TestInitialize(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	path := writeConfig(t, minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("GetConfig() = nil after Initialize")
	}
	if cfg.Upstream.URL != "http://localhost:9000" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	first := writeConfig(t, minimalYAML)
	second := writeConfig(t, `
upstream:
  url: "http://other:9000"
`)

	if err := Initialize(first); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(second); err != nil {
		t.Fatal(err)
	}
	if got := GetConfig().Upstream.URL; got != "http://localhost:9000" {
		t.Errorf("second Initialize replaced config: %q", got)
	}
}

func TestInitialize_ErrorSticks(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	bad := writeConfig(t, "upstream:\n  url: \"\"\n")
	if err := Initialize(bad); err == nil {
		t.Fatal("expected error for config without upstream")
	}
	if err := Initialize(writeConfig(t, minimalYAML)); err == nil {
		t.Error("second Initialize should return the first error")
	}
	if GetConfig() != nil {
		t.Error("failed Initialize installed a config")
	}
}

func TestMustGetConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("MustGetConfig() did not panic before Initialize")
			}
		}()
		MustGetConfig()
	}()

	SetConfig(Default())
	if MustGetConfig() == nil {
		t.Error("MustGetConfig() = nil after SetConfig")
	}
}

func TestReloadConfig(t *testing.T) {
	resetForTest()
	t.Cleanup(resetForTest)

	if err := Initialize(writeConfig(t, minimalYAML)); err != nil {
		t.Fatal(err)
	}

	bad := writeConfig(t, "profiles:\n  source: redis\n")
	if _, err := ReloadConfig(bad); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig().Upstream.URL != "http://localhost:9000" {
		t.Error("failed reload replaced config")
	}

	good := writeConfig(t, "upstream:\n  url: \"http://reloaded:9000\"\n")
	cfg, err := ReloadConfig(good)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != GetConfig() || cfg.Upstream.URL != "http://reloaded:9000" {
		t.Errorf("reload not installed: %q", GetConfig().Upstream.URL)
	}
}
