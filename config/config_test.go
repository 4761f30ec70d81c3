package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFillsEveryDirUnderBaseDir(t *testing.T) {
	cfg := Default()
	if cfg.BaseDir == "" {
		t.Fatal("expected a non-empty BaseDir")
	}
	for name, dir := range map[string]string{
		"UserDir":      cfg.UserDir,
		"ContainerDir": cfg.ContainerDir,
		"StorageDir":   cfg.StorageDir,
		"BridgeDir":    cfg.BridgeDir,
	} {
		if filepath.Dir(dir) != cfg.BaseDir {
			t.Errorf("%s = %q, want it rooted at BaseDir %q", name, dir, cfg.BaseDir)
		}
	}
	if cfg.TrustFileName != ".wildland-owners" {
		t.Errorf("TrustFileName = %q, want .wildland-owners", cfg.TrustFileName)
	}
}

func TestLoadFallsBackToDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %q, want %q", cfg.Version, CurrentVersion)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "default-user: 0xaa11aa\nlocal-owners:\n  - 0xbb22bb\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultUser != "0xaa11aa" {
		t.Errorf("DefaultUser = %q, want 0xaa11aa", cfg.DefaultUser)
	}
	if len(cfg.LocalOwners) != 1 || cfg.LocalOwners[0] != "0xbb22bb" {
		t.Errorf("LocalOwners = %v", cfg.LocalOwners)
	}
	// unset fields still fall back to Default()
	if cfg.TrustFileName != ".wildland-owners" {
		t.Errorf("TrustFileName = %q, want default preserved", cfg.TrustFileName)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: \"99.0\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject an unsupported version")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("WL_BASE_DIR", "/tmp/wl-test-base")
	t.Setenv("WL_DEFAULT_USER", "0xcc33cc")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != "/tmp/wl-test-base" {
		t.Errorf("BaseDir = %q, want env override applied", cfg.BaseDir)
	}
	if cfg.DefaultUser != "0xcc33cc" {
		t.Errorf("DefaultUser = %q, want env override applied", cfg.DefaultUser)
	}
}

func TestResolveOwner(t *testing.T) {
	cfg := &Configuration{
		DefaultUser: "0xaa11aa",
		Aliases:     map[string]string{"@bob": "0xbb22bb"},
	}

	if got := cfg.ResolveOwner(""); got != "0xaa11aa" {
		t.Errorf("ResolveOwner(\"\") = %q, want default user", got)
	}
	if got := cfg.ResolveOwner("@bob"); got != "0xbb22bb" {
		t.Errorf("ResolveOwner(@bob) = %q, want alias target", got)
	}
	if got := cfg.ResolveOwner("0xdd44dd"); got != "0xdd44dd" {
		t.Errorf("ResolveOwner(fingerprint) = %q, want passthrough", got)
	}
}

func TestVersionMajorMinor(t *testing.T) {
	v := MajorMinorVersion(2, 5)
	if v.Major() != 2 || v.Minor() != 5 {
		t.Errorf("Major()=%d Minor()=%d, want 2, 5", v.Major(), v.Minor())
	}
}
