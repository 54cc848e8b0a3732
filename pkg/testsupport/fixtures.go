// Package testsupport holds fixture and golden file helpers shared by the
// package tests.
package testsupport

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-remote-resource/store/memstore"
	"github.com/google/go-cmp/cmp"
)

// update rewrites golden files with the actual output: go test ./... -update
var update = flag.Bool("update", false, "rewrite golden files")

// FixturePath joins filename onto the package testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath joins filename onto testdata/golden.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

// LoadFixture reads path or fails the test.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("load fixture %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON decodes the JSON fixture at path into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()
	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("decode fixture %s: %v", path, err)
	}
}

// LoadStore seeds a memstore from a JSON fixture keyed by collection path:
//
//	{"/users": [{"id": 1, "name": "ada"}]}
//
// Numbers decode as float64, which record ids tolerate.
func LoadStore(t testing.TB, path string, opts ...memstore.Option) *memstore.Store {
	t.Helper()
	var collections map[string][]map[string]any
	LoadFixtureJSON(t, path, &collections)

	s := memstore.New(opts...)
	for collection, records := range collections {
		s.Put(collection, records...)
	}
	return s
}

// CompareWithGolden checks actual against the golden file at path. A
// missing file, or the -update flag, writes actual as the new golden.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	switch {
	case *update || os.IsNotExist(err):
		writeGolden(t, path, actual)
		return
	case err != nil:
		t.Fatalf("read golden %s: %v", path, err)
	}

	if diff := cmp.Diff(string(expected), string(actual)); diff != "" {
		t.Errorf("golden %s mismatch (-want +got):\n%s", path, diff)
	}
}

func writeGolden(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden %s: %v", path, err)
	}
	t.Logf("wrote golden %s", path)
}
