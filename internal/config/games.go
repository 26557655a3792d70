package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GameEntry binds a game title to the prefix used on generated key strings.
type GameEntry struct {
	Name   string `mapstructure:"name" json:"name"`
	Prefix string `mapstructure:"prefix" json:"prefix"`
}

// DefaultGames is the built-in catalog, used when no games.yml is mounted.
func DefaultGames() []GameEntry {
	return []GameEntry{
		{Name: "PUBG MOBILE", Prefix: "PBGM"},
		{Name: "LAST ISLAND OF SURVIVAL", Prefix: "LIOS"},
		{Name: "FREE FIRE", Prefix: "FIRE"},
	}
}

// GameCatalog resolves game titles to key prefixes. The backing list can be
// swapped at runtime by a config file change, so reads go through an
// atomic.Value.
type GameCatalog struct {
	current atomic.Value // holds []GameEntry
}

// NewGameCatalog loads the catalog from games.yml and watches it for changes.
func NewGameCatalog(log *zap.Logger) (*GameCatalog, error) {
	log = log.Named("game.catalog")
	v := viper.New()

	v.SetConfigName("games")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/keymaster")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KEYMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("games", DefaultGames())
	}

	var entries []GameEntry
	if err := v.UnmarshalKey("games", &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		entries = DefaultGames()
	}
	if err := validateGames(entries); err != nil {
		return nil, err
	}

	catalog := &GameCatalog{}
	catalog.current.Store(entries)

	v.WatchConfig()
	v.OnConfigChange(func(fsnotify.Event) {
		var updated []GameEntry
		if err := v.UnmarshalKey("games", &updated); err != nil {
			log.Error("catalog reload failed", zap.Error(err))
			return
		}
		if err := validateGames(updated); err != nil {
			log.Warn("invalid catalog ignored", zap.Error(err))
			return
		}
		catalog.current.Store(updated)
		log.Info("game catalog reloaded", zap.Int("games", len(updated)))
	})

	return catalog, nil
}

// NewStaticGameCatalog builds a catalog from a fixed list. Test helper.
func NewStaticGameCatalog(entries []GameEntry) *GameCatalog {
	catalog := &GameCatalog{}
	catalog.current.Store(entries)
	return catalog
}

// Valid reports whether name is a known game title.
func (c *GameCatalog) Valid(name string) bool {
	_, ok := c.Prefix(name)
	return ok
}

// Prefix returns the key prefix for a game title.
func (c *GameCatalog) Prefix(name string) (string, bool) {
	for _, entry := range c.entries() {
		if entry.Name == name {
			return entry.Prefix, true
		}
	}
	return "", false
}

// Names lists the catalog titles in declaration order.
func (c *GameCatalog) Names() []string {
	entries := c.entries()
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names
}

func (c *GameCatalog) entries() []GameEntry {
	entries, _ := c.current.Load().([]GameEntry)
	return entries
}

func validateGames(entries []GameEntry) error {
	if len(entries) == 0 {
		return errors.New("game catalog is empty")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		prefix := strings.TrimSpace(entry.Prefix)
		if name == "" || prefix == "" {
			return errors.New("game entries need a name and a prefix")
		}
		if prefix != strings.ToUpper(prefix) {
			return errors.New("game prefixes must be uppercase")
		}
		if _, dup := seen[name]; dup {
			return errors.New("duplicate game name: " + name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
