// Package contextstore loads curated domain context artifacts from a
// directory of YAML files and serves them through an in-memory registry.
// One file per domain; a file that fails to load or validate is skipped
// without affecting the others.
package contextstore

// SupportedAPIVersion is the only artifact apiVersion this build accepts.
const SupportedAPIVersion = "dbx.copilot/v1"

// KindDomainContext is the document kind for a domain context artifact.
const KindDomainContext = "DomainContext"

// DomainContextDoc is the on-disk YAML envelope for one domain.
type DomainContextDoc struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   Metadata          `yaml:"metadata"`
	Spec       DomainContextSpec `yaml:"spec"`
}

// Metadata identifies the artifact. Name must match the file name.
type Metadata struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DomainContextSpec carries the curated knowledge for one domain.
type DomainContextSpec struct {
	Description string            `yaml:"description"`
	Tables      []TableDoc        `yaml:"tables"`
	Metrics     map[string]string `yaml:"metrics"`
	Rules       []string          `yaml:"rules"`
	Examples    []ExampleDoc      `yaml:"examples"`
}

// TableDoc describes one queryable table.
type TableDoc struct {
	Name             string      `yaml:"name"` // schema-qualified
	Description      string      `yaml:"description"`
	SensitivityNotes string      `yaml:"sensitivity_notes"`
	Columns          []ColumnDoc `yaml:"columns"`
}

// ColumnDoc describes one column of a table.
type ColumnDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// ExampleDoc is a curated question/SQL pair used for few-shot prompting.
type ExampleDoc struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}
