// Package config loads a repository's .zit/repo/config.toml, the repo-local
// configuration spec.md §6's layout names but leaves unspecified, grounded on
// the teacher's modules/zeta/config package (BurntSushi/toml decode, typed
// sections, an Overwrite merge for layering a baseline under a repo-local
// file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/antgroup/zit/signing"
)

// ErrBadConfigKey reports a config key this package doesn't recognize,
// mirroring the teacher's ErrBadConfigKey.
type ErrBadConfigKey struct {
	Key string
}

func (e *ErrBadConfigKey) Error() string {
	return fmt.Sprintf("config: bad key %q", e.Key)
}

func IsBadConfigKey(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrBadConfigKey)
	return ok
}

var ErrNoSuchKey = errors.New("config: key not set")

// User identifies who authors and commits changes, mirroring spec.md §6's
// ZIT_USER/ZIT_EMAIL environment override pair.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool {
	return u == nil || u.Name == "" || u.Email == ""
}

func overwriteString(a, b string) string {
	if b != "" {
		return b
	}
	return a
}

func (u *User) overwrite(o User) {
	u.Name = overwriteString(u.Name, o.Name)
	u.Email = overwriteString(u.Email, o.Email)
}

// Signing configures commit signing: which backend to use (gpg, ssh, test,
// or empty for none), the mode from §4.1/§4.12 (keep/force/drop), and a
// backend-specific key reference.
type Signing struct {
	Backend string `toml:"backend,omitempty"`
	Mode    string `toml:"mode,omitempty"`
	Key     string `toml:"key,omitempty"`
}

func (s *Signing) overwrite(o Signing) {
	s.Backend = overwriteString(s.Backend, o.Backend)
	s.Mode = overwriteString(s.Mode, o.Mode)
	s.Key = overwriteString(s.Key, o.Key)
}

// ParseMode maps the config's mode string to signing.Mode, defaulting to
// ModeKeep for an empty value per Default's baseline.
func (s Signing) ParseMode() (signing.Mode, error) {
	switch s.Mode {
	case "", "keep":
		return signing.ModeKeep, nil
	case "force":
		return signing.ModeForce, nil
	case "drop":
		return signing.ModeDrop, nil
	default:
		return 0, &ErrBadConfigKey{Key: "signing.mode=" + s.Mode}
	}
}

// Core holds the handful of repository-wide knobs this implementation
// exposes: the adaptive conflict-marker floor and the bounded I/O
// concurrency cap for working-copy snapshots.
type Core struct {
	ConflictMarkerLength int `toml:"conflictMarkerLength,omitzero"`
	SnapshotConcurrency  int `toml:"snapshotConcurrency,omitzero"`
}

func (c *Core) overwrite(o Core) {
	if o.ConflictMarkerLength > 0 {
		c.ConflictMarkerLength = o.ConflictMarkerLength
	}
	if o.SnapshotConcurrency > 0 {
		c.SnapshotConcurrency = o.SnapshotConcurrency
	}
}

// Config is the decoded contents of a repository's config.toml.
type Config struct {
	Core    Core    `toml:"core,omitempty"`
	User    User    `toml:"user,omitempty"`
	Signing Signing `toml:"signing,omitempty"`
}

// Default returns the baseline configuration applied before any file is
// read: a 7-byte conflict marker floor (spec.md's "Conflict marker format"
// default) and unbounded signing (ModeKeep with no backend configured).
func Default() *Config {
	return &Config{
		Core: Core{
			ConflictMarkerLength: 7,
			SnapshotConcurrency:  8,
		},
		Signing: Signing{Mode: "keep"},
	}
}

// Overwrite layers o's non-zero fields on top of c, the same one-way merge
// shape as the teacher's Config.Overwrite.
func (c *Config) Overwrite(o *Config) {
	c.Core.overwrite(o.Core)
	c.User.overwrite(o.User)
	c.Signing.overwrite(o.Signing)
}

// Load reads repoDir/config.toml (a repository's .zit/repo directory) on top
// of Default, returning the baseline unchanged if no file exists yet (a
// freshly initialized repository has none).
func Load(repoDir string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(repoDir, "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	var fromFile Config
	if _, err := toml.DecodeFile(path, &fromFile); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Overwrite(&fromFile)
	return cfg, nil
}

// Save writes cfg to repoDir/config.toml, overwriting any existing file.
func Save(repoDir string, cfg *Config) error {
	path := filepath.Join(repoDir, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
