package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReadsCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Unit("pyromancer"); !ok {
		t.Fatalf("loaded catalog is missing pyromancer")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file loaded without error")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("units: [unclosed")); err == nil {
		t.Fatalf("malformed yaml parsed without error")
	}
}
