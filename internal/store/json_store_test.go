package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
)

type testDoc struct {
	Brand string   `json:"brand"`
	Items []string `json:"items"`
}

func defaultDoc() *testDoc {
	return &testDoc{Brand: "default", Items: []string{}}
}

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	s := NewJSONStore(afero.NewMemMapFs())

	doc, err := Load(s, "data/catalog.json", defaultDoc)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if doc.Brand != "default" {
		t.Errorf("expected default document, got %+v", doc)
	}
}

func TestLoad_CorruptFileReturnsDefaultAndQuarantines(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "catalog.json", []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	s := NewJSONStore(fs)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	doc, err := Load(s, "catalog.json", defaultDoc)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if doc == nil || doc.Brand != "default" {
		t.Errorf("expected default document on corrupt file, got %+v", doc)
	}

	if exists, _ := afero.Exists(fs, "catalog.json"); exists {
		t.Error("corrupt file should have been moved aside")
	}
	if exists, _ := afero.Exists(fs, "catalog.json.corrupt-1700000000"); !exists {
		t.Error("corrupt file should be preserved with a .corrupt suffix")
	}
}

func TestSave_WritesIndentedUnescapedJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewJSONStore(fs)

	doc := &testDoc{Brand: "🌒 NTRLI' <b>", Items: []string{"a"}}
	if err := s.Save("nft_assets/registry.json", doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := afero.ReadFile(fs, "nft_assets/registry.json")
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "\n  \"brand\": ") {
		t.Errorf("expected 2-space indentation, got:\n%s", content)
	}
	if !strings.Contains(content, "🌒 NTRLI' <b>") {
		t.Errorf("expected emoji and markup to be written verbatim, got:\n%s", content)
	}

	entries, err := afero.ReadDir(fs, "nft_assets")
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file to remain, found %d entries", len(entries))
	}
}

func TestSave_FailureLeavesPreviousVersion(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := NewJSONStore(base).Save("catalog.json", &testDoc{Brand: "v1"}); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	readOnly := NewJSONStore(afero.NewReadOnlyFs(base))
	err := readOnly.Save("catalog.json", &testDoc{Brand: "v2"})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}

	doc, err := Load(NewJSONStore(base), "catalog.json", defaultDoc)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Brand != "v1" {
		t.Errorf("expected previous version to survive, got %q", doc.Brand)
	}
}

func TestProperty_SaveThenLoadReturnsLastWrite(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("the last saved document is the one loaded", prop.ForAll(
		func(brands []string) bool {
			s := NewJSONStore(afero.NewMemMapFs())
			for _, b := range brands {
				if err := s.Save("doc.json", &testDoc{Brand: b, Items: []string{}}); err != nil {
					return false
				}
			}

			doc, err := Load(s, "doc.json", defaultDoc)
			if err != nil {
				return false
			}
			return doc.Brand == brands[len(brands)-1]
		},
		gen.SliceOfN(5, gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
