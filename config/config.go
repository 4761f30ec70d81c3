package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
	"gopkg.in/yaml.v2"
)

// Configuration is Wildland's on-disk config: where to find users,
// containers, storages, bridges and templates, which user/alias to act as
// by default, and the mount daemon's tuning knobs. Mirrors the shape of
// configuration/configuration.go's top-level Configuration{Version, ...}
// struct, trimmed to Wildland's own fields.
type Configuration struct {
	Version Version `yaml:"version"`

	// BaseDir is the root of all Wildland state. Default() places every
	// other directory below under it; setting BaseDir from the file or
	// WL_BASE_DIR does not move them, so each keeps its default unless
	// set explicitly.
	BaseDir string `yaml:"base-dir,omitempty"`

	UserDir      string `yaml:"user-dir,omitempty"`
	ContainerDir string `yaml:"container-dir,omitempty"`
	StorageDir   string `yaml:"storage-dir,omitempty"`
	BridgeDir    string `yaml:"bridge-dir,omitempty"`
	TemplateDir  string `yaml:"template-dir,omitempty"`
	KeyDir       string `yaml:"key-dir,omitempty"`

	// DefaultUser is the fingerprint (or alias) acted as when a
	// WildlandPath omits an owner.
	DefaultUser string `yaml:"default-user,omitempty"`

	// Aliases maps short names (as used in `@name` hints) to user
	// fingerprints, per spec section 4.5.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// LocalOwners lists fingerprints of users trusted to publish
	// manifests that load without signature verification from a
	// storage marked trusted, per spec section 7.
	LocalOwners []string `yaml:"local-owners,omitempty"`

	// TrustFileName is the manifest filename within a trusted storage's
	// root that declares its owner, per spec section 7 (".wildland-owners").
	TrustFileName string `yaml:"trust-file-name,omitempty"`

	Mount MountConfig `yaml:"mount,omitempty"`

	Log Log `yaml:"log,omitempty"`
}

// MountConfig tunes the mount controller's caching/watching behavior.
type MountConfig struct {
	CacheTTLSeconds  int `yaml:"cache-ttl-seconds,omitempty"`
	PageSizeBytes    int `yaml:"page-size-bytes,omitempty"`
	MaxBufferedPages int `yaml:"max-buffered-pages,omitempty"`
	WatchDebounceMS  int `yaml:"watch-debounce-ms,omitempty"`
}

// Log configures the logrus-backed logger every package logs through via
// internal/wlcontext.
type Log struct {
	Level     string `yaml:"level,omitempty"`
	Formatter string `yaml:"formatter,omitempty"`
}

// Default returns a Configuration with every directory rooted at an
// XDG-resolved base dir, the way lazydocker resolves its config home via
// OpenPeeDeeP/xdg.
func Default() *Configuration {
	dirs := xdg.New("wildland", "wildland")
	base := dirs.DataHome()

	return &Configuration{
		Version:       CurrentVersion,
		BaseDir:       base,
		UserDir:       filepath.Join(base, "users"),
		ContainerDir:  filepath.Join(base, "containers"),
		StorageDir:    filepath.Join(base, "storage-templates"),
		BridgeDir:     filepath.Join(base, "bridges"),
		TemplateDir:   filepath.Join(base, "templates"),
		KeyDir:        filepath.Join(base, "keys"),
		TrustFileName: ".wildland-owners",
		Mount: MountConfig{
			CacheTTLSeconds:  3,
			PageSizeBytes:    8 * 1024 * 1024,
			MaxBufferedPages: 8,
			WatchDebounceMS:  200,
		},
		Log: Log{Level: "info", Formatter: "text"},
	}
}

// RuntimeDir returns the XDG runtime directory wildland-go uses for its PID
// lockfile, spec section 6.
func RuntimeDir() string {
	dirs := xdg.New("wildland", "wildland")
	return dirs.RuntimeHome()
}

// Load reads a Configuration from path, falling back to Default() values
// for anything unset, then applying the environment override allow-list.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Version != CurrentVersion && cfg.Version != "" {
		return nil, fmt.Errorf("config: unsupported version %q", cfg.Version)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Configuration) {
	env := envOverrides()
	if base, ok := env["WL_BASE_DIR"]; ok {
		cfg.BaseDir = base
	}
	if user, ok := env["WL_DEFAULT_USER"]; ok {
		cfg.DefaultUser = user
	}
}

// ResolveOwner resolves a bare `@alias` hint or empty owner string to a
// user fingerprint, per spec section 4.5.
func (c *Configuration) ResolveOwner(ownerOrAlias string) string {
	if ownerOrAlias == "" {
		return c.DefaultUser
	}
	if fp, ok := c.Aliases[ownerOrAlias]; ok {
		return fp
	}
	return ownerOrAlias
}
