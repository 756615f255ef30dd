// Package cache stores per-file unit metadata keyed by content hash, so
// metadata-only analyses (dependency graphs, reachability listings) can
// skip re-parsing files that have not changed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/svtools/svpickle/internal/syntax"
)

const cacheIndexVersion = 1

// parserVersion invalidates cached metadata when the parser's extraction
// behavior changes. Bump on any change to metadata collection.
const parserVersion = "1"

type cacheEntry struct {
	ContentHash   string `json:"content_hash"`
	MetadataPath  string `json:"metadata_path"`
	ParserVersion string `json:"parser_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// Cache is an on-disk metadata cache rooted at one directory. Safe for
// concurrent use.
type Cache struct {
	dir   string
	mu    sync.Mutex
	index cacheIndex
}

func New(dir string) *Cache {
	return &Cache{
		dir: dir,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

// HashFile returns the content hash used as a cache key for one file.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *Cache) metadataDir() string {
	return filepath.Join(c.dir, "metadata")
}

func (c *Cache) metadataPathForFile(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return filepath.Join(c.metadataDir(), hex.EncodeToString(h[:])+".json")
}

// Load reads the cache index from disk. A missing index is an empty cache;
// a version mismatch resets it.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

// Save writes the cache index to disk atomically.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

// Get returns the cached metadata for a file if the entry exists, matches
// the content hash, and was produced by the current parser version.
func (c *Cache) Get(filePath, contentHash string) (syntax.Metadata, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()

	if !ok || entry.ContentHash != contentHash || entry.ParserVersion != parserVersion {
		return syntax.Metadata{}, false, nil
	}
	data, err := os.ReadFile(entry.MetadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return syntax.Metadata{}, false, nil
		}
		return syntax.Metadata{}, false, fmt.Errorf("read cached metadata: %w", err)
	}
	var md syntax.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		// Corrupt record: treat as a miss, the caller will overwrite it.
		return syntax.Metadata{}, false, nil
	}
	return md, true, nil
}

// Put stores metadata for a file and records it in the index.
func (c *Cache) Put(filePath, contentHash string, md syntax.Metadata) error {
	if err := os.MkdirAll(c.metadataDir(), 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	mdPath := c.metadataPathForFile(filePath)
	if err := writeJSONAtomic(mdPath, md); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:   contentHash,
		MetadataPath:  mdPath,
		ParserVersion: parserVersion,
	}
	return nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
