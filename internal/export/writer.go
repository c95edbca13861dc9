// Package export writes the per-scope run artifacts: the raw extraction
// (pre-dedup, for debugging what the source returned) and the normalized set
// (post dedup and promotion, matching what gets persisted). The two files
// serve different audiences and are always written separately, even when
// their contents coincide.
package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/handyman-tn/leadsync/internal/model"
)

// Writer writes scope artifacts under a base directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteScope writes both artifacts for a scope. The files are independent,
// so they are written concurrently.
func (w *Writer) WriteScope(ctx context.Context, scope model.Scope, raw, normalized []model.Business) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir %s", w.dir)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeJSON(RawPath(w.dir, scope), raw)
	})
	g.Go(func() error {
		return writeJSON(NormalizedPath(w.dir, scope), normalized)
	})
	return g.Wait()
}

// ReadNormalized loads the normalized artifact for a scope, as consumed by
// the sync and export commands.
func ReadNormalized(dir string, scope model.Scope) ([]model.Business, error) {
	path := NormalizedPath(dir, scope)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	var records []model.Business
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "export: parse %s", path)
	}
	return records, nil
}

// RawPath returns the raw-extraction artifact path for a scope.
func RawPath(dir string, scope model.Scope) string {
	return filepath.Join(dir, slug(scope.City)+"_"+slug(scope.Service)+"_raw.json")
}

// NormalizedPath returns the normalized artifact path for a scope.
func NormalizedPath(dir string, scope model.Scope) string {
	return filepath.Join(dir, slug(scope.City)+"_"+slug(scope.Service)+".json")
}

func writeJSON(path string, records []model.Business) error {
	if records == nil {
		records = []model.Business{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
