package contextstore

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v4"
	"golang.org/x/sync/errgroup"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/guardrail"
)

// Loader reads domain context artifacts from a directory. Each *.yaml file
// under the directory is one domain.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader over dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// LoadResult is the outcome of one directory scan. Failed maps file name to
// the error that made that domain unloadable; domains in Failed are absent
// from Contexts.
type LoadResult struct {
	Contexts []*domain.DomainContext
	Failed   map[string]error
}

// Load scans the directory and builds an immutable DomainContext per file.
// A malformed or invalid file fails only its own domain. Load fails as a
// whole only when the directory itself is unreadable.
func (l *Loader) Load() (*LoadResult, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("contexts directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	result := &LoadResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(8)
	for _, name := range names {
		g.Go(func() error {
			dc, err := l.loadFile(name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				l.logger.Warn("skipping domain context", "file", name, "error", err)
				result.Failed[name] = err
				return nil
			}
			result.Contexts = append(result.Contexts, dc)
			return nil
		})
	}
	// Workers never return errors; per-file failures are collected above.
	_ = g.Wait()

	sort.Slice(result.Contexts, func(i, j int) bool {
		return result.Contexts[i].DomainID < result.Contexts[j].DomainID
	})
	return result, nil
}

// loadFile parses and validates a single artifact.
func (l *Loader) loadFile(name string) (*domain.DomainContext, error) {
	path := filepath.Join(l.dir, name)
	data, err := os.ReadFile(path) //nolint:gosec // operator-specified config directory
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc DomainContextDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if doc.APIVersion != SupportedAPIVersion {
		return nil, fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindDomainContext {
		return nil, fmt.Errorf("%s: unexpected kind %q (expected %q)", path, doc.Kind, KindDomainContext)
	}
	wantName := strings.TrimSuffix(name, ".yaml")
	if doc.Metadata.Name != wantName {
		return nil, fmt.Errorf("%s: metadata.name %q does not match file name %q", path, doc.Metadata.Name, wantName)
	}
	if doc.Metadata.Version == "" {
		return nil, fmt.Errorf("%s: metadata.version is required", path)
	}
	if len(doc.Spec.Tables) == 0 {
		return nil, fmt.Errorf("%s: spec.tables must declare at least one table", path)
	}

	dc := buildContext(&doc)
	if err := guardrail.CheckContext(dc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dc, nil
}

func buildContext(doc *DomainContextDoc) *domain.DomainContext {
	dc := &domain.DomainContext{
		DomainID:    doc.Metadata.Name,
		Version:     doc.Metadata.Version,
		Description: doc.Spec.Description,
		Metrics:     doc.Spec.Metrics,
		Rules:       doc.Spec.Rules,
	}
	for _, t := range doc.Spec.Tables {
		table := domain.TableSpec{
			QualifiedName:    t.Name,
			Description:      t.Description,
			SensitivityNotes: t.SensitivityNotes,
		}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, domain.ColumnSpec{
				Name:        c.Name,
				Type:        c.Type,
				Description: c.Description,
			})
		}
		dc.Tables = append(dc.Tables, table)
	}
	for _, ex := range doc.Spec.Examples {
		dc.Examples = append(dc.Examples, domain.Example{Question: ex.Question, SQL: ex.SQL})
	}
	return dc
}
