package contextstore

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// Registry is the in-memory domain catalog. Contexts are immutable once
// stored; Apply swaps whole values, so readers never observe a partially
// updated domain. The registry is add-only: a rescan may add domains or
// replace a domain with a newer artifact, but a domain that disappears from
// disk stays served until restart. In-flight questions against it keep
// working, and a transient mount failure cannot empty the catalog.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*domain.DomainContext
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*domain.DomainContext)}
}

// Lookup returns the context for domainID.
func (r *Registry) Lookup(domainID string) (*domain.DomainContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dc, ok := r.contexts[domainID]
	return dc, ok
}

// Domains returns the sorted list of registered domain IDs.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Apply merges a load result into the registry and reports the domain IDs
// that were added or changed. A context with an unchanged version is left
// alone.
func (r *Registry) Apply(result *LoadResult, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	for _, dc := range result.Contexts {
		prev, ok := r.contexts[dc.DomainID]
		if ok && prev.Version == dc.Version {
			continue
		}
		r.contexts[dc.DomainID] = dc
		changed = append(changed, dc.DomainID)
		if ok {
			logger.Info("domain context updated",
				"domain", dc.DomainID, "from_version", prev.Version, "to_version", dc.Version)
		} else {
			logger.Info("domain context registered",
				"domain", dc.DomainID, "version", dc.Version, "tables", len(dc.Tables))
		}
	}
	return changed
}
