package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Store backends accepted by Settings.Store.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Token string
	Site  Site
	Store string
	// Lists maps list keys (clientes, asuntos, CARPETA1, ...) to SharePoint list ids.
	// An empty id marks a list that is not provisioned.
	Lists map[string]string
	Cache CacheSettings
}

// Site addresses the SharePoint site holding every lookup list.
type Site struct {
	Host string
	Path string
}

// CacheSettings tunes the cache manager and the remote client.
type CacheSettings struct {
	StaleThreshold time.Duration
	ExpansionDelay time.Duration
	ExpansionPause time.Duration
	ExpansionBatch int
	FetchTimeout   time.Duration
	MaxValueBytes  int
}

// DefaultLists holds the list ids of the production site.
var DefaultLists = map[string]string{
	"clientes":          "d27e0216-23fb-405a-a567-677561e21701",
	"asuntos":           "002e0cc5-ba7e-4975-837a-3ee66f163646",
	"subasuntos":        "7b20956b-1a07-482d-8516-2b6d24fd22f5",
	"tiposDocumento":    "68ef3918-4451-4586-a2c3-e93af01b2a4e",
	"subTiposdocumento": "a90d4a9e-5c48-4f9b-8e82-7c3dc31f19b4",
	"CARPETA":           "2f3609c6-afd3-41a7-a1ea-91c103986dd5",
	"NIVEL1":            "44f371bb-5ca6-43c2-ad9c-281d612e1f92",
	"NIVEL2":            "612c8c64-15c3-4cf4-aa20-5205dffc0536",
	"Tema":              "fdfbc633-01ea-4efe-81a0-accbdf4bd77f",
	"Subtema":           "2ed1c934-c215-479d-b053-b30ef133e8c9",
	"TipoDoc":           "b06f75b7-9f96-42ee-9c91-c5b1c7e808f3",
	"CARPETA1_DJ":       "f28c04ec-c279-4f1f-bfe9-32aacce00ecc",
	"CARPETA1":          "cffdd944-add5-4314-bc9c-a40e5c1785f1",
	"CARPETA2":          "0a66e16a-a6ee-4e99-811d-da00c920f80d",
	"CARPETA3":          "a84a5331-07cb-42b9-993b-c709167b58c7",
	"CARPETA4":          "78457760-394f-4786-a729-db6c8e839ccb",
	"CARPETA5":          "9b53ef21-3e8b-4ca4-a037-85f9e362d118",
	"CARPETA6":          "",
	"CARPETA7":          "",
}

// Defaults returns the settings used when no file or environment overrides exist.
func Defaults() Settings {
	return Settings{
		Site: Site{
			Host: "hughesandhughesuy.sharepoint.com",
			Path: "/sites/GestorDocumental",
		},
		Store: StoreSQLite,
		Lists: maps.Clone(DefaultLists),
		Cache: CacheSettings{
			StaleThreshold: 6 * time.Hour,
			ExpansionDelay: 3 * time.Second,
			ExpansionPause: 100 * time.Millisecond,
			ExpansionBatch: 10,
			FetchTimeout:   30 * time.Second,
			MaxValueBytes:  5 << 20,
		},
	}
}

type fileSettings struct {
	Site  *siteBlock        `hcl:"site,block"`
	Store *storeBlock       `hcl:"store,block"`
	Cache *cacheBlock       `hcl:"cache,block"`
	Lists map[string]string `hcl:"lists,optional"`
}

type siteBlock struct {
	Host string `hcl:"host,optional"`
	Path string `hcl:"path,optional"`
}

type storeBlock struct {
	Backend string `hcl:"backend,optional"`
}

type cacheBlock struct {
	StaleThreshold string `hcl:"stale_threshold,optional"`
	ExpansionDelay string `hcl:"expansion_delay,optional"`
	ExpansionPause string `hcl:"expansion_pause,optional"`
	ExpansionBatch int    `hcl:"expansion_batch,optional"`
	FetchTimeout   string `hcl:"fetch_timeout,optional"`
	MaxValueBytes  int    `hcl:"max_value_bytes,optional"`
}

// Load reads the HCL file at path (GetConfigPath when empty) on top of Defaults
// and applies environment overrides. A missing file is not an error.
func Load(path string) (Settings, error) {
	if path == "" {
		path = GetConfigPath()
	}

	settings := Defaults()

	if _, err := os.Stat(path); err == nil {
		var parsed fileSettings
		if err := hclsimple.DecodeFile(path, nil, &parsed); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := parsed.apply(&settings); err != nil {
			return Settings{}, fmt.Errorf("invalid config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	applyEnv(&settings)

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks the values that cannot be defaulted.
func (s Settings) Validate() error {
	switch s.Store {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", s.Store)
	}
	if s.Site.Host == "" {
		return errors.New("site host is required")
	}
	if s.Cache.ExpansionBatch <= 0 {
		return errors.New("cache expansion_batch must be positive")
	}
	return nil
}

func (f fileSettings) apply(s *Settings) error {
	if f.Site != nil {
		if f.Site.Host != "" {
			s.Site.Host = f.Site.Host
		}
		if f.Site.Path != "" {
			s.Site.Path = f.Site.Path
		}
	}
	if f.Store != nil && f.Store.Backend != "" {
		s.Store = strings.ToLower(f.Store.Backend)
	}
	for key, id := range f.Lists {
		s.Lists[key] = id
	}
	if f.Cache == nil {
		return nil
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"stale_threshold", f.Cache.StaleThreshold, &s.Cache.StaleThreshold},
		{"expansion_delay", f.Cache.ExpansionDelay, &s.Cache.ExpansionDelay},
		{"expansion_pause", f.Cache.ExpansionPause, &s.Cache.ExpansionPause},
		{"fetch_timeout", f.Cache.FetchTimeout, &s.Cache.FetchTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("cache %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if f.Cache.ExpansionBatch != 0 {
		s.Cache.ExpansionBatch = f.Cache.ExpansionBatch
	}
	if f.Cache.MaxValueBytes != 0 {
		s.Cache.MaxValueBytes = f.Cache.MaxValueBytes
	}
	return nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("DOCFILER_TOKEN"); v != "" {
		s.Token = v
	}
	if v := os.Getenv("DOCFILER_STORE"); v != "" {
		s.Store = strings.ToLower(v)
	}
	if v := os.Getenv("DOCFILER_SITE_HOST"); v != "" {
		s.Site.Host = v
	}
	if v := os.Getenv("DOCFILER_SITE_PATH"); v != "" {
		s.Site.Path = v
	}
}
