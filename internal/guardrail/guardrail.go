// Package guardrail is the structural validator standing between query
// generation and execution. It is the sole technical control preventing a
// generated statement from mutating or exfiltrating data outside policy, so
// it is deliberately conservative: any construct it cannot conclusively
// classify as safe is rejected.
//
// Validate is a pure function over the candidate and the domain context. It
// performs no I/O, which keeps it unit-testable in isolation from the
// language model and the data platform.
package guardrail

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/sqlparse"
)

// systemSchemas are namespaces no candidate may reference, regardless of
// what the domain declares.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"pg_catalog":         true,
	"performance_schema": true,
	"sys":                true,
	"system":             true,
}

// systemTablePrefixes reject direct access to engine-internal objects even
// when unqualified.
var systemTablePrefixes = []string{"duckdb_", "pragma_", "sqlite_", "pg_"}

// Guardrail validates candidate queries against a domain's declared schema.
type Guardrail struct {
	defaultRowLimit int
}

// New creates a Guardrail. defaultRowLimit is the canonical result-row limit
// applied during normalization; it must be positive.
func New(defaultRowLimit int) *Guardrail {
	if defaultRowLimit <= 0 {
		defaultRowLimit = 100
	}
	return &Guardrail{defaultRowLimit: defaultRowLimit}
}

// Validate accepts or rejects one candidate statement. On acceptance the
// verdict carries the normalized text: metric aliases expanded into their
// defining expressions and a row limit no higher than the configured
// default.
func (g *Guardrail) Validate(candidate *domain.CandidateQuery, dc *domain.DomainContext) domain.GuardrailVerdict {
	stmt, err := sqlparse.Parse(candidate.Text)
	if err != nil {
		if errors.Is(err, sqlparse.ErrMultipleStatements) {
			return domain.Rejected(domain.ReasonMultipleStatements, "statement batches are not allowed")
		}
		return domain.Rejected(domain.ReasonMalformedSQL, err.Error())
	}

	if other, ok := stmt.(*sqlparse.OtherStmt); ok {
		return domain.Rejected(domain.ReasonDisallowedStatementType,
			fmt.Sprintf("%s statements are not allowed; only read-only SELECT is permitted", other.Kind))
	}

	// Expand metric aliases before any reference checking, so the
	// closed-world check only ever reasons about raw schema references.
	if verdict, ok := g.expandMetrics(stmt, dc); !ok {
		return verdict
	}

	if verdict, ok := g.checkLiterals(stmt); !ok {
		return verdict
	}
	if verdict, ok := g.checkTables(stmt, dc); !ok {
		return verdict
	}
	if verdict, ok := g.checkColumns(stmt, dc); !ok {
		return verdict
	}
	if verdict, ok := g.checkCartesian(stmt); !ok {
		return verdict
	}
	if verdict, ok := g.normalizeLimit(stmt); !ok {
		return verdict
	}

	return domain.Accepted(sqlparse.Format(stmt))
}

// CheckContext validates a domain context at load time: every metric
// expression must parse and reference only declared columns. A domain that
// fails this check is refused registration, so query-time expansion can
// assume well-formed metrics.
func CheckContext(dc *domain.DomainContext) error {
	declared := declaredColumns(dc)
	for name, exprText := range dc.Metrics {
		expr, err := sqlparse.ParseExpr(exprText)
		if err != nil {
			return fmt.Errorf("metric %q: %w", name, err)
		}
		var bad string
		sqlparse.RewriteColumnRefs(wrapExpr(expr), func(ref *sqlparse.ColumnRef) sqlparse.Expr {
			if bad == "" && !declared[strings.ToLower(ref.Column)] {
				bad = ref.Column
			}
			return nil
		})
		if bad != "" {
			return fmt.Errorf("metric %q references undeclared column %q", name, bad)
		}
	}
	for i := range dc.Tables {
		if len(dc.Tables[i].Columns) == 0 {
			return fmt.Errorf("table %q declares no columns", dc.Tables[i].QualifiedName)
		}
	}
	return nil
}

// wrapExpr embeds a bare expression in a minimal statement so the statement
// walkers apply to it.
func wrapExpr(expr sqlparse.Expr) sqlparse.Stmt {
	return &sqlparse.SelectStmt{
		Body: &sqlparse.SelectBody{
			Left: &sqlparse.SelectCore{
				Columns: []sqlparse.SelectItem{{Expr: expr}},
			},
		},
	}
}

// expandMetrics substitutes unqualified references to metric names with the
// metric's parsed expression, parenthesized. Expressions are parsed fresh
// per call so no AST is ever shared across requests.
func (g *Guardrail) expandMetrics(stmt sqlparse.Stmt, dc *domain.DomainContext) (domain.GuardrailVerdict, bool) {
	if len(dc.Metrics) == 0 {
		return domain.GuardrailVerdict{}, true
	}

	var parseErr error
	sqlparse.RewriteColumnRefs(stmt, func(ref *sqlparse.ColumnRef) sqlparse.Expr {
		if ref.Table != "" || parseErr != nil {
			return nil
		}
		exprText, ok := metricFor(dc, ref.Column)
		if !ok {
			return nil
		}
		expr, err := sqlparse.ParseExpr(exprText)
		if err != nil {
			parseErr = fmt.Errorf("metric %q: %v", ref.Column, err)
			return nil
		}
		return &sqlparse.ParenExpr{Expr: expr}
	})
	if parseErr != nil {
		// Load-time checking makes this unreachable for registered domains;
		// reject rather than execute with an unexpanded alias.
		return domain.Rejected(domain.ReasonMalformedSQL, parseErr.Error()), false
	}
	return domain.GuardrailVerdict{}, true
}

func metricFor(dc *domain.DomainContext, name string) (string, bool) {
	for metric, expr := range dc.Metrics {
		if strings.EqualFold(metric, name) {
			return expr, true
		}
	}
	return "", false
}

// checkLiterals rejects string literals that reopen a comment or string
// context. The statement comes from a trusted generator, but the question it
// was generated from does not; this is the defense against prompt injection
// smuggling SQL fragments through literals.
func (g *Guardrail) checkLiterals(stmt sqlparse.Stmt) (domain.GuardrailVerdict, bool) {
	var bad string
	for _, ref := range collectLiterals(stmt) {
		if ref.Type != sqlparse.LiteralString {
			continue
		}
		v := ref.Value
		if strings.Contains(v, "'") || strings.Contains(v, "--") ||
			strings.Contains(v, "/*") || strings.Contains(v, "*/") ||
			strings.Contains(v, ";") {
			bad = v
			break
		}
	}
	if bad != "" {
		return domain.Rejected(domain.ReasonSuspiciousLiteral,
			"string literal contains a quote, comment, or statement separator sequence"), false
	}
	return domain.GuardrailVerdict{}, true
}

func collectLiterals(stmt sqlparse.Stmt) []*sqlparse.Literal {
	var lits []*sqlparse.Literal
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		if lit, ok := e.(*sqlparse.Literal); ok {
			lits = append(lits, lit)
		}
	})
	return lits
}

// checkTables enforces the closed world: every referenced table must be
// declared by the domain, and system/catalog namespaces are always denied.
// Table-valued functions are denied outright: they reach objects outside
// the declared schema.
func (g *Guardrail) checkTables(stmt sqlparse.Stmt, dc *domain.DomainContext) (domain.GuardrailVerdict, bool) {
	if funcs := sqlparse.CollectFuncTables(stmt); len(funcs) > 0 {
		return domain.Rejected(domain.ReasonSystemObjectAccess,
			fmt.Sprintf("table function %q is not allowed", funcs[0].Func.Name)), false
	}

	cteNames := sqlparse.CTENames(stmt)
	allowedSchemas := make(map[string]bool)
	for _, s := range dc.Schemas() {
		allowedSchemas[s] = true
	}

	for _, table := range sqlparse.CollectTables(stmt) {
		name := strings.ToLower(table.Name)

		if table.Schema == "" && cteNames[name] {
			continue
		}

		schema := strings.ToLower(table.Schema)
		if systemSchemas[schema] {
			return domain.Rejected(domain.ReasonSystemObjectAccess,
				fmt.Sprintf("schema %q is not accessible", table.Schema)), false
		}
		for _, prefix := range systemTablePrefixes {
			if strings.HasPrefix(name, prefix) {
				return domain.Rejected(domain.ReasonSystemObjectAccess,
					fmt.Sprintf("system object %q is not accessible", table.Name)), false
			}
		}

		if schema != "" && !allowedSchemas[schema] {
			return domain.Rejected(domain.ReasonUnknownTable,
				fmt.Sprintf("schema %q is not declared by domain %q", table.Schema, dc.DomainID)), false
		}
		if _, ok := dc.Table(table.Qualified()); !ok {
			if _, ok := dc.Table(table.Name); !ok {
				return domain.Rejected(domain.ReasonUnknownTable,
					fmt.Sprintf("table %q is not declared by domain %q", table.Qualified(), dc.DomainID)), false
			}
		}
	}
	return domain.GuardrailVerdict{}, true
}

// checkColumns enforces the closed world over columns. The check is against
// the declared schema, not the live warehouse, so it runs without a
// connection. Qualified references must name a known table, alias, or CTE;
// every column name must be declared somewhere in the domain (or defined by
// the query itself as an alias).
func (g *Guardrail) checkColumns(stmt sqlparse.Stmt, dc *domain.DomainContext) (domain.GuardrailVerdict, bool) {
	declared := declaredColumns(dc)
	aliases := sqlparse.CollectAliases(stmt)
	cteNames := sqlparse.CTENames(stmt)

	knownQualifiers := make(map[string]bool)
	for name := range aliases {
		knownQualifiers[name] = true
	}
	for name := range cteNames {
		knownQualifiers[name] = true
	}
	for i := range dc.Tables {
		t := &dc.Tables[i]
		knownQualifiers[strings.ToLower(t.Name())] = true
		knownQualifiers[strings.ToLower(t.QualifiedName)] = true
	}

	for _, ref := range sqlparse.CollectColumnRefs(stmt) {
		col := strings.ToLower(ref.Column)

		if ref.Table != "" {
			qualifier := strings.ToLower(ref.Table)
			if !knownQualifiers[qualifier] {
				return domain.Rejected(domain.ReasonUnknownColumn,
					fmt.Sprintf("qualifier %q does not name a declared table or alias", ref.Table)), false
			}
			// Columns of a declared table are checked against that table.
			if t, ok := dc.Table(ref.Table); ok {
				if !tableHasColumn(t, col) {
					return domain.Rejected(domain.ReasonUnknownColumn,
						fmt.Sprintf("column %q is not declared on table %q", ref.Column, t.QualifiedName)), false
				}
				continue
			}
		}

		if !declared[col] && !aliases[col] {
			return domain.Rejected(domain.ReasonUnknownColumn,
				fmt.Sprintf("column %q is not declared by domain %q", ref.Column, dc.DomainID)), false
		}
	}
	return domain.GuardrailVerdict{}, true
}

func declaredColumns(dc *domain.DomainContext) map[string]bool {
	declared := make(map[string]bool)
	for i := range dc.Tables {
		for _, col := range dc.Tables[i].Columns {
			declared[strings.ToLower(col.Name)] = true
		}
	}
	return declared
}

func tableHasColumn(t *domain.TableSpec, lowerName string) bool {
	for _, col := range t.Columns {
		if strings.ToLower(col.Name) == lowerName {
			return true
		}
	}
	return false
}

// checkCartesian rejects cross joins (explicit or comma-form) that carry no
// join condition and no WHERE filter anywhere in their core, the classic
// resource-exhaustion shape.
func (g *Guardrail) checkCartesian(stmt sqlparse.Stmt) (domain.GuardrailVerdict, bool) {
	for _, core := range sqlparse.CollectCores(stmt) {
		if core.From == nil {
			continue
		}
		for _, join := range core.From.Joins {
			unconstrained := join.Condition == nil && len(join.Using) == 0 && !join.Natural
			crossShape := join.Type == sqlparse.JoinCross || join.Type == sqlparse.JoinComma
			if crossShape && unconstrained && core.Where == nil {
				return domain.Rejected(domain.ReasonCartesianProduct,
					"cross join without any filter predicate"), false
			}
		}
	}
	return domain.GuardrailVerdict{}, true
}

// normalizeLimit guarantees the outer statement carries a row limit no
// higher than the configured default. An existing stricter limit is kept;
// a missing or looser one becomes the default. Non-literal limits cannot be
// compared, so they are rejected.
func (g *Guardrail) normalizeLimit(stmt sqlparse.Stmt) (domain.GuardrailVerdict, bool) {
	core := sqlparse.OuterCore(stmt)
	if core == nil {
		return domain.Rejected(domain.ReasonMalformedSQL, "statement has no selectable core"), false
	}

	if core.Limit == nil {
		core.Limit = &sqlparse.Literal{Type: sqlparse.LiteralNumber, Value: strconv.Itoa(g.defaultRowLimit)}
		return domain.GuardrailVerdict{}, true
	}

	n, ok := sqlparse.LimitValue(core.Limit)
	if !ok {
		return domain.Rejected(domain.ReasonMalformedSQL, "LIMIT must be a literal number"), false
	}
	if n > g.defaultRowLimit {
		core.Limit = &sqlparse.Literal{Type: sqlparse.LiteralNumber, Value: strconv.Itoa(g.defaultRowLimit)}
	}
	return domain.GuardrailVerdict{}, true
}
