package domain

import "strings"

// ColumnSpec describes one column of a governed table.
type ColumnSpec struct {
	Name        string
	Type        string
	Description string
}

// TableSpec is read-only reference data describing one table a domain may
// query. QualifiedName is schema-qualified (e.g. "sales.orders").
type TableSpec struct {
	QualifiedName    string
	Description      string
	Columns          []ColumnSpec
	SensitivityNotes string
}

// Schema returns the schema part of the qualified name, or "" when the name
// is unqualified.
func (t *TableSpec) Schema() string {
	if i := strings.LastIndex(t.QualifiedName, "."); i >= 0 {
		return t.QualifiedName[:i]
	}
	return ""
}

// Name returns the bare table name without the schema qualifier.
func (t *TableSpec) Name() string {
	if i := strings.LastIndex(t.QualifiedName, "."); i >= 0 {
		return t.QualifiedName[i+1:]
	}
	return t.QualifiedName
}

// Example is one worked question→SQL pair used to ground generation.
type Example struct {
	Question string
	SQL      string
}

// DomainContext is the per-domain bundle of schema descriptions, metric
// definitions, SQL rules, and worked examples. Built once at load and never
// mutated afterwards, so it is safe for unlimited concurrent readers.
type DomainContext struct {
	DomainID    string
	Version     string
	Description string
	Tables      []TableSpec
	Metrics     map[string]string // metric name → SQL expression over declared columns
	Rules       []string
	Examples    []Example
}

// Table looks up a declared table by bare or schema-qualified name,
// case-insensitively.
func (c *DomainContext) Table(name string) (*TableSpec, bool) {
	for i := range c.Tables {
		t := &c.Tables[i]
		if strings.EqualFold(t.QualifiedName, name) || strings.EqualFold(t.Name(), name) {
			return t, true
		}
	}
	return nil, false
}

// Schemas returns the deduplicated schema names declared by this domain.
func (c *DomainContext) Schemas() []string {
	seen := make(map[string]bool)
	var schemas []string
	for i := range c.Tables {
		s := strings.ToLower(c.Tables[i].Schema())
		if s != "" && !seen[s] {
			seen[s] = true
			schemas = append(schemas, s)
		}
	}
	return schemas
}
