package discharge

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when cachePayload changes.
const cacheSchemaVersion uint16 = 1

const cacheFile = "proofs.mp"

// Cache remembers obligations that were proved in earlier runs. Entries
// are keyed by the hash of the exact query sent to the solver, so any
// change to the obligation or to what it depends on misses the cache.
// A nil *Cache is a valid, empty cache.
type Cache struct {
	mu     sync.RWMutex
	dir    string
	proved map[string]struct{}
	added  int
}

type cachePayload struct {
	Schema uint16
	Proved []string
}

// OpenCache loads the cache stored in dir, creating dir if needed. A cache
// written with another schema is discarded.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("discharge: proof cache: %w", err)
	}
	c := &Cache{dir: dir, proved: make(map[string]struct{})}
	f, err := os.Open(filepath.Join(dir, cacheFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("discharge: proof cache: %w", err)
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("discharge: proof cache %s: %w", f.Name(), err)
	}
	if payload.Schema != cacheSchemaVersion {
		return c, nil
	}
	for _, k := range payload.Proved {
		c.proved[k] = struct{}{}
	}
	return c, nil
}

// Key identifies the query proving term after the definitions in decls.
func Key(decls []string, term string) string {
	h := sha256.New()
	for _, d := range decls {
		h.Write([]byte(d))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte(term))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Has(key string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.proved[key]
	return ok
}

func (c *Cache) Add(keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if _, ok := c.proved[k]; !ok {
			c.proved[k] = struct{}{}
			c.added++
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.proved)
}

// Save writes the cache back if anything was added.
func (c *Cache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.added == 0 {
		return nil
	}

	payload := cachePayload{Schema: cacheSchemaVersion, Proved: make([]string, 0, len(c.proved))}
	for k := range c.proved {
		payload.Proved = append(payload.Proved, k)
	}
	slices.Sort(payload.Proved)

	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("discharge: proof cache: %w", err)
	}
	defer os.Remove(f.Name())
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		f.Close()
		return fmt.Errorf("discharge: proof cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("discharge: proof cache: %w", err)
	}
	if err := os.Rename(f.Name(), filepath.Join(c.dir, cacheFile)); err != nil {
		return fmt.Errorf("discharge: proof cache: %w", err)
	}
	c.added = 0
	return nil
}
