package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/svtools/svpickle/internal/syntax"
)

func TestHashFileChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.sv")
	if err := os.WriteFile(path, []byte("module a; endmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("module a2; endmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("hash did not change with content: %s", h1)
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := New(t.TempDir())
	if err := c.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	md := syntax.Metadata{
		Declared:   []string{"top"},
		Referenced: []string{"core", "fifo"},
	}
	if err := c.Put("/src/top.sv", "abc123", md); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := c.Get("/src/top.sv", "abc123")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if !reflect.DeepEqual(got, md) {
		t.Fatalf("metadata mismatch: got %+v, want %+v", got, md)
	}
}

func TestGetMissOnChangedHash(t *testing.T) {
	c := New(t.TempDir())
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("/src/top.sv", "oldhash", syntax.Metadata{Declared: []string{"top"}}); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := c.Get("/src/top.sv", "newhash"); err != nil || ok {
		t.Fatalf("expected a miss for a changed hash, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := c.Get("/src/other.sv", "oldhash"); err != nil || ok {
		t.Fatalf("expected a miss for an unknown file, got ok=%v err=%v", ok, err)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	c := New(dir)
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	md := syntax.Metadata{Declared: []string{"alu"}}
	if err := c.Put("/src/alu.sv", "h1", md); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	c2 := New(dir)
	if err := c2.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got, ok, err := c2.Get("/src/alu.sv", "h1")
	if err != nil || !ok {
		t.Fatalf("expected a hit after reload, got ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, md) {
		t.Fatalf("metadata mismatch after reload: %+v", got)
	}
}

func TestLoadMissingIndexIsEmpty(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "fresh"))
	if err := c.Load(); err != nil {
		t.Fatalf("load of missing index failed: %v", err)
	}
	if _, ok, _ := c.Get("/any.sv", "h"); ok {
		t.Fatal("fresh cache should not hit")
	}
}

func TestVersionMismatchResets(t *testing.T) {
	dir := t.TempDir()
	stale := map[string]interface{}{
		"version": 999,
		"entries": map[string]interface{}{
			"/src/old.sv": map[string]interface{}{
				"content_hash":   "h",
				"metadata_path":  "/nowhere.json",
				"parser_version": "1",
			},
		},
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(dir)
	if err := c.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, ok, _ := c.Get("/src/old.sv", "h"); ok {
		t.Fatal("entries from a mismatched version must be dropped")
	}
}

func TestCorruptIndexIsAnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(dir)
	if err := c.Load(); err == nil {
		t.Fatal("expected an error for a corrupt index")
	}
}

func TestCorruptMetadataRecordIsAMiss(t *testing.T) {
	c := New(t.TempDir())
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("/src/top.sv", "h", syntax.Metadata{Declared: []string{"top"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.metadataPathForFile("/src/top.sv"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get("/src/top.sv", "h"); err != nil || ok {
		t.Fatalf("corrupt record should be a silent miss, got ok=%v err=%v", ok, err)
	}
}
