// Package catalog loads per-client ingestion configuration from disk.
//
// A config directory is laid out as:
//
//	clients/<name>.json            client config (client_id, status codes, date formats, reader settings)
//	mappings/<name>_mapping.json   source field -> canonical field, optionally wrapped as {"mapping": {...}}
//	schemas/loan_schema.json       canonical schema shared by every client
//
// Each file may also be written as .yaml or .yml. Loaded bundles are cached
// until Reload is called.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// SchemaName is the base name of the shared canonical schema.
const SchemaName = "loan_schema"

var (
	ErrClientNotFound  = errors.New("client config not found")
	ErrMappingNotFound = errors.New("mapping config not found")
	ErrSchemaNotFound  = errors.New("schema not found")
	ErrInvalidName     = errors.New("invalid client name")
)

// extensions are tried in order when locating a config file.
var extensions = []string{".json", ".yaml", ".yml"}

// Bundle is everything needed to ingest one client's file.
type Bundle struct {
	Name    string
	Client  core.ClientConfig
	Mapping core.Mapping
	Schema  core.Schema
}

// Catalog reads and caches client bundles from a config directory.
type Catalog struct {
	dir string

	mu      sync.RWMutex
	bundles map[string]Bundle
}

// New creates a catalog rooted at dir.
func New(dir string) *Catalog {
	return &Catalog{
		dir:     dir,
		bundles: make(map[string]Bundle),
	}
}

// Dir returns the config directory.
func (c *Catalog) Dir() string { return c.dir }

// Load returns the bundle for a client, reading it from disk on first use.
func (c *Catalog) Load(name string) (Bundle, error) {
	c.mu.RLock()
	b, ok := c.bundles[name]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}

	b, err := c.read(name)
	if err != nil {
		return Bundle{}, err
	}

	c.mu.Lock()
	c.bundles[name] = b
	c.mu.Unlock()
	return b, nil
}

// Reload drops all cached bundles so the next Load reads from disk.
func (c *Catalog) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles = make(map[string]Bundle)
}

// Clients lists the client names that have a config file, sorted.
func (c *Catalog) Clients() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, "clients"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list clients: %w", err)
	}

	seen := make(map[string]bool)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !isConfigExt(ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Client reads a client config.
func (c *Catalog) Client(name string) (core.ClientConfig, error) {
	if err := checkName(name); err != nil {
		return core.ClientConfig{}, err
	}

	path, ok := c.find("clients", name)
	if !ok {
		return core.ClientConfig{}, fmt.Errorf("%w: %s", ErrClientNotFound, filepath.Join(c.dir, "clients", name+".json"))
	}

	var cfg core.ClientConfig
	if err := decodeFile(path, &cfg); err != nil {
		return core.ClientConfig{}, err
	}
	if cfg.ClientID == "" {
		return core.ClientConfig{}, fmt.Errorf("%s: %w", path, core.ErrMissingClientID)
	}
	return cfg.WithDefaults(), nil
}

// Mapping reads a client's field mapping.
func (c *Catalog) Mapping(name string) (core.Mapping, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	path, ok := c.find("mappings", name+"_mapping")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, filepath.Join(c.dir, "mappings", name+"_mapping.json"))
	}

	var raw map[string]any
	if err := decodeFile(path, &raw); err != nil {
		return nil, err
	}
	return mappingFrom(raw, path)
}

// Schema reads the shared canonical schema.
func (c *Catalog) Schema() (core.Schema, error) {
	path, ok := c.find("schemas", SchemaName)
	if !ok {
		return core.Schema{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, filepath.Join(c.dir, "schemas", SchemaName+".json"))
	}

	var s core.Schema
	if err := decodeFile(path, &s); err != nil {
		return core.Schema{}, err
	}
	return s, nil
}

func (c *Catalog) read(name string) (Bundle, error) {
	client, err := c.Client(name)
	if err != nil {
		return Bundle{}, err
	}
	mapping, err := c.Mapping(name)
	if err != nil {
		return Bundle{}, err
	}
	schema, err := c.Schema()
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Name: name, Client: client, Mapping: mapping, Schema: schema}, nil
}

// find returns the first existing <dir>/<sub>/<base><ext>.
func (c *Catalog) find(sub, base string) (string, bool) {
	for _, ext := range extensions {
		path := filepath.Join(c.dir, sub, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// mappingFrom accepts both {"mapping": {...}} and a bare mapping object.
func mappingFrom(raw map[string]any, path string) (core.Mapping, error) {
	if inner, ok := raw["mapping"].(map[string]any); ok {
		raw = inner
	}

	m := make(core.Mapping, len(raw))
	for src, dst := range raw {
		s, ok := dst.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%s: mapping for %q must be a field name", path, src)
		}
		m[src] = s
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%s: mapping is empty", path)
	}
	return m, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func isConfigExt(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
