package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("PV_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("PV_HOME", "/custom/pv")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := map[string]string{
			"config_path": "/custom/config.toml",
			"base_dir":    "/custom/pv",
			"log_dir":     "/custom/pv/log",
		}
		for key, w := range want {
			if defaults[key] != w {
				t.Errorf("%s = %q, want %q", key, defaults[key], w)
			}
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("PV_CONFIG_PATH", "")
		t.Setenv("PV_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		if want := filepath.Join(homeDir, ".config", "pv.toml"); defaults["config_path"] != want {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], want)
		}
		wantBase := filepath.Join(homeDir, ".local", "share", "pv")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
		if want := filepath.Join(wantBase, "log"); defaults["log_dir"] != want {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], want)
		}
	})
}
