package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-remote-resource/store/memstore"
)

func TestLoadFixtureJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	if err := os.WriteFile(path, []byte(`{"name":"test","value":42}`), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var result map[string]any
	LoadFixtureJSON(t, path, &result)

	if result["name"] != "test" {
		t.Errorf("expected name=test, got %v", result["name"])
	}
	if result["value"] != float64(42) {
		t.Errorf("expected value=42, got %v", result["value"])
	}
}

func TestLoadStore(t *testing.T) {
	s := LoadStore(t, FixturePath("records.json"))

	resp, err := s.Get(context.Background(), "/test_resources/1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, ok := resp.Body.(map[string]any)
	if !ok || body["name"] != "first" {
		t.Errorf("unexpected body %v", resp.Body)
	}

	keyed := LoadStore(t, FixturePath("records.json"), memstore.WithPrimaryKey("name"))
	if _, err := keyed.Get(context.Background(), "/test_resources/second", nil); err != nil {
		t.Errorf("expected lookup by name, got %v", err)
	}
}

func TestCompareWithGolden_CreatesMissingFile(t *testing.T) {
	goldenFile := filepath.Join(t.TempDir(), "golden", "new.golden")
	content := []byte("id%5B%5D=1&id%5B%5D=2")

	CompareWithGolden(t, goldenFile, content)

	created, err := os.ReadFile(goldenFile)
	if err != nil {
		t.Fatalf("golden file should have been created: %v", err)
	}
	if string(created) != string(content) {
		t.Errorf("expected %q, got %q", content, created)
	}

	CompareWithGolden(t, goldenFile, content)
}

func TestPaths(t *testing.T) {
	if got := FixturePath("a.json"); got != filepath.Join("testdata", "a.json") {
		t.Errorf("FixturePath = %q", got)
	}
	if got := GoldenPath("a.golden"); got != filepath.Join("testdata", "golden", "a.golden") {
		t.Errorf("GoldenPath = %q", got)
	}
}
