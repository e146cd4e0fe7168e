package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPairError_Message(t *testing.T) {
	err := &PairError{Src: "en", Tgt: "xx"}
	want := "translation unavailable: no installed model for en -> xx"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestIsMissingModel(t *testing.T) {
	cases := []struct {
		stderr string
		want   bool
	}{
		{"Error: package en -> xx not installed", true},
		{"no package found for pair", true},
		{"ValueError: language not found", true},
		{"segmentation fault", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isMissingModel(c.stderr); got != c.want {
			t.Errorf("isMissingModel(%q) = %v, want %v", c.stderr, got, c.want)
		}
	}
}

func TestCache_PutGet(t *testing.T) {
	c := &Cache{data: make(map[string]map[string]cacheEntry)}

	if _, ok := c.Get("id", "Hello"); ok {
		t.Error("empty cache must miss")
	}

	c.Put("id", "Hello", "Halo")

	got, ok := c.Get("id", "Hello")
	if !ok || got != "Halo" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	// Keys are normalized: case and surrounding space do not matter.
	got, ok = c.Get("id", "  hello ")
	if !ok || got != "Halo" {
		t.Errorf("normalized Get = %q, %v", got, ok)
	}

	// Different target language is a different namespace.
	if _, ok := c.Get("de", "Hello"); ok {
		t.Error("cache must be per target language")
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 2 {
		t.Errorf("stats = %d hits / %d misses, want 2/2", hits, misses)
	}
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := &Cache{
		path: filepath.Join(dir, "cache.json"),
		data: make(map[string]map[string]cacheEntry),
	}
	c.Put("id", "Hello", "Halo")
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		t.Fatalf("reading saved cache: %v", err)
	}

	c2 := &Cache{path: c.path, data: make(map[string]map[string]cacheEntry)}
	if err := json.Unmarshal(raw, &c2.data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := c2.Get("id", "hello")
	if !ok || got != "Halo" {
		t.Errorf("reloaded Get = %q, %v", got, ok)
	}
}
