package builder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/fsutil"
)

// CacheEntry records how a unit's universal object was produced.
type CacheEntry struct {
	Object      string `json:"object"`
	InitSymbol  string `json:"init_symbol"`
	Fingerprint string `json:"fingerprint"`
	// Digest is the SHA-256 of the object when it was recorded.
	Digest string `json:"digest"`
}

// Cache maps source units to their last successful compilation. It is safe
// for concurrent use by unit workers.
type Cache struct {
	path    string
	mu      sync.Mutex
	entries map[string]CacheEntry
	dirty   bool
}

type cacheFile struct {
	Units map[string]CacheEntry `json:"units"`
}

// LoadCache reads the manifest at path. A missing or unreadable manifest
// yields an empty cache; the build then falls back to symbol recovery.
func LoadCache(ctx context.Context, path string) *Cache {
	logger := ctxlog.FromContext(ctx)
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Ignoring unreadable build cache.", "path", path, "error", err)
		}
		return c
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("Ignoring corrupt build cache.", "path", path, "error", err)
		return c
	}
	for unit, e := range f.Units {
		c.entries[unit] = e
	}
	logger.Debug("Build cache loaded.", "path", path, "units", len(c.entries))
	return c
}

// Lookup returns the entry for unit. The second result reports whether an
// entry exists at all; the third whether it is still trustworthy for the
// given fingerprint and the object currently on disk.
func (c *Cache) Lookup(unit, fingerprint string) (CacheEntry, bool, bool) {
	c.mu.Lock()
	e, ok := c.entries[unit]
	c.mu.Unlock()
	if !ok {
		return CacheEntry{}, false, false
	}
	if e.Fingerprint != fingerprint || e.InitSymbol == "" {
		return e, true, false
	}
	digest, err := fileDigest(e.Object)
	if err != nil || digest != e.Digest {
		return e, true, false
	}
	return e, true, true
}

// Store records a unit's entry.
func (c *Cache) Store(unit string, e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[unit] = e
	c.dirty = true
}

// Save writes the manifest atomically if anything changed.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(cacheFile{Units: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling build cache: %w", err)
	}
	if err := fsutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing build cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Fingerprint identifies the configuration a unit is compiled under. Any
// change to the platform, the architecture set or the descriptor set
// invalidates every cached unit.
func Fingerprint(platform string, archs []Architecture, descriptors []string) string {
	h := sha256.New()
	writeField := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeField(platform)
	for _, a := range archs {
		writeField(a.Name)
		writeField(a.March)
	}
	writeField("--")
	for _, d := range descriptors {
		writeField(d)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
