// Package file loads pattern definitions from a directory of YAML
// files, one pattern per file. Files are read in lexical order, which
// fixes the pattern registration order.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/weftworks/weft/pkg/domain"
)

// Loader implements ports.PatternLoader over a directory.
type Loader struct {
	dir string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadPatterns parses every .yaml/.yml file in the directory. A single
// malformed file fails the whole load; patterns must not reach the
// registry half-validated.
func (l *Loader) LoadPatterns(_ context.Context) ([]*domain.Pattern, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern directory %s: %w", l.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	patterns := make([]*domain.Pattern, 0, len(names))
	for _, name := range names {
		path := filepath.Join(l.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
		}
		p, err := domain.ParsePattern(data)
		if err != nil {
			return nil, fmt.Errorf("pattern file %s: %w", path, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// LoadPattern re-reads the directory and returns the pattern with the
// given id. Used by resetPattern to pick up edited definitions.
func (l *Loader) LoadPattern(ctx context.Context, id string) (*domain.Pattern, error) {
	patterns, err := l.LoadPatterns(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range patterns {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrPatternNotFound
}
