package guardrail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

func salesContext() *domain.DomainContext {
	return &domain.DomainContext{
		DomainID: "sales",
		Version:  "3",
		Tables: []domain.TableSpec{
			{
				QualifiedName: "sales.orders",
				Columns: []domain.ColumnSpec{
					{Name: "order_id", Type: "BIGINT"},
					{Name: "customer_id", Type: "BIGINT"},
					{Name: "amount", Type: "DECIMAL(18,2)"},
					{Name: "created_at", Type: "TIMESTAMP"},
				},
			},
			{
				QualifiedName: "sales.customers",
				Columns: []domain.ColumnSpec{
					{Name: "customer_id", Type: "BIGINT"},
					{Name: "name", Type: "VARCHAR"},
					{Name: "region", Type: "VARCHAR"},
				},
			},
		},
		Metrics: map[string]string{
			"revenue": "SUM(amount)",
		},
	}
}

func validate(t *testing.T, sql string) domain.GuardrailVerdict {
	t.Helper()
	g := New(100)
	return g.Validate(&domain.CandidateQuery{Text: sql, DomainID: "sales"}, salesContext())
}

func TestValidate_AcceptsSimpleSelect(t *testing.T) {
	v := validate(t, `SELECT order_id, amount FROM sales.orders WHERE amount > 10`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.Empty(t, v.Reason)
	assert.Contains(t, v.NormalizedText, `"sales"."orders"`)
}

func TestValidate_InjectsDefaultLimit(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.True(t, strings.HasSuffix(v.NormalizedText, "LIMIT 100"), "got %q", v.NormalizedText)
}

func TestValidate_ClampsExcessiveLimit(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders LIMIT 500000`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.True(t, strings.HasSuffix(v.NormalizedText, "LIMIT 100"), "got %q", v.NormalizedText)
}

func TestValidate_KeepsStricterLimit(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders LIMIT 5`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.True(t, strings.HasSuffix(v.NormalizedText, "LIMIT 5"), "got %q", v.NormalizedText)
}

func TestValidate_RejectsNonLiteralLimit(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders LIMIT 10 + 10`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonMalformedSQL, v.Reason)
}

// Revalidating accepted output must accept it again with identical text.
func TestValidate_NormalizationIsIdempotent(t *testing.T) {
	queries := []string{
		`SELECT order_id, amount FROM sales.orders WHERE amount > 10`,
		`SELECT region, revenue FROM sales.orders o JOIN sales.customers c ON o.customer_id = c.customer_id GROUP BY region`,
		`SELECT order_id FROM sales.orders ORDER BY created_at DESC LIMIT 7`,
	}
	for _, q := range queries {
		first := validate(t, q)
		require.True(t, first.Accepted, "query %q rejected: %s", q, first.Detail)
		second := validate(t, first.NormalizedText)
		require.True(t, second.Accepted, "normalized %q rejected: %s", first.NormalizedText, second.Detail)
		assert.Equal(t, first.NormalizedText, second.NormalizedText)
	}
}

func TestValidate_RejectsWrites(t *testing.T) {
	cases := map[string]string{
		"insert":   `INSERT INTO sales.orders (order_id) VALUES (1)`,
		"update":   `UPDATE sales.orders SET amount = 0`,
		"delete":   `DELETE FROM sales.orders`,
		"drop":     `DROP TABLE sales.orders`,
		"create":   `CREATE TABLE t (x INT)`,
		"alter":    `ALTER TABLE sales.orders ADD COLUMN y INT`,
		"grant":    `GRANT SELECT ON sales.orders TO analyst`,
		"truncate": `TRUNCATE sales.orders`,
	}
	for name, sql := range cases {
		t.Run(name, func(t *testing.T) {
			v := validate(t, sql)
			require.False(t, v.Accepted)
			assert.Equal(t, domain.ReasonDisallowedStatementType, v.Reason)
		})
	}
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders; SELECT 1`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonMultipleStatements, v.Reason)
}

func TestValidate_RejectsPiggybackedWrite(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders; DROP TABLE sales.orders`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonMultipleStatements, v.Reason)
}

func TestValidate_RejectsMalformedSQL(t *testing.T) {
	v := validate(t, `SELECT FROM WHERE`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonMalformedSQL, v.Reason)
}

func TestValidate_RejectsUnknownTable(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.payments`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownTable, v.Reason)
	assert.Contains(t, v.Detail, "payments")
}

func TestValidate_RejectsUndeclaredSchema(t *testing.T) {
	v := validate(t, `SELECT order_id FROM finance.orders`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownTable, v.Reason)
}

func TestValidate_RejectsUnknownColumn(t *testing.T) {
	v := validate(t, `SELECT salary FROM sales.orders`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownColumn, v.Reason)
	assert.Contains(t, v.Detail, "salary")
}

func TestValidate_RejectsUnknownColumnOnKnownTable(t *testing.T) {
	v := validate(t, `SELECT o.region FROM sales.orders o`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownColumn, v.Reason)
}

func TestValidate_RejectsUnknownQualifier(t *testing.T) {
	v := validate(t, `SELECT x.order_id FROM sales.orders o`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownColumn, v.Reason)
}

func TestValidate_AcceptsSelectListAliasInOrderBy(t *testing.T) {
	v := validate(t, `SELECT SUM(amount) AS total FROM sales.orders GROUP BY customer_id ORDER BY total DESC`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
}

func TestValidate_AcceptsCTE(t *testing.T) {
	v := validate(t, `WITH recent AS (SELECT order_id, amount FROM sales.orders WHERE created_at > '2026-01-01') SELECT order_id FROM recent`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
}

func TestValidate_CTEDoesNotOpenClosedWorld(t *testing.T) {
	v := validate(t, `WITH recent AS (SELECT secret FROM hr.payroll) SELECT secret FROM recent`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownTable, v.Reason)
}

func TestValidate_RejectsSystemSchemas(t *testing.T) {
	for _, sql := range []string{
		`SELECT table_name FROM information_schema.tables`,
		`SELECT relname FROM pg_catalog.pg_class`,
		`SELECT name FROM system.runtime`,
	} {
		v := validate(t, sql)
		require.False(t, v.Accepted, "query %q was accepted", sql)
		assert.Equal(t, domain.ReasonSystemObjectAccess, v.Reason)
	}
}

func TestValidate_RejectsEngineInternalTables(t *testing.T) {
	for _, sql := range []string{
		`SELECT * FROM duckdb_settings`,
		`SELECT * FROM pragma_database_list`,
		`SELECT * FROM sqlite_master`,
	} {
		v := validate(t, sql)
		require.False(t, v.Accepted, "query %q was accepted", sql)
		assert.Equal(t, domain.ReasonSystemObjectAccess, v.Reason)
	}
}

func TestValidate_RejectsTableFunctions(t *testing.T) {
	v := validate(t, `SELECT * FROM read_csv('orders.csv')`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonSystemObjectAccess, v.Reason)
}

func TestValidate_RejectsUnconstrainedCrossJoin(t *testing.T) {
	for _, sql := range []string{
		`SELECT order_id FROM sales.orders CROSS JOIN sales.customers`,
		`SELECT order_id FROM sales.orders, sales.customers`,
	} {
		v := validate(t, sql)
		require.False(t, v.Accepted, "query %q was accepted", sql)
		assert.Equal(t, domain.ReasonCartesianProduct, v.Reason)
	}
}

func TestValidate_AcceptsFilteredCommaJoin(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders o, sales.customers c WHERE o.customer_id = c.customer_id`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
}

func TestValidate_AcceptsInnerJoin(t *testing.T) {
	v := validate(t, `SELECT o.order_id, c.name FROM sales.orders o JOIN sales.customers c ON o.customer_id = c.customer_id`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
}

func TestValidate_RejectsSuspiciousLiterals(t *testing.T) {
	for _, sql := range []string{
		`SELECT order_id FROM sales.orders WHERE region = 'west''; DROP TABLE x'`,
		`SELECT order_id FROM sales.orders WHERE region = 'a -- b'`,
		`SELECT order_id FROM sales.orders WHERE region = 'a /* b */'`,
		`SELECT order_id FROM sales.orders WHERE region = 'a;b'`,
	} {
		v := validate(t, sql)
		require.False(t, v.Accepted, "query %q was accepted", sql)
		assert.Equal(t, domain.ReasonSuspiciousLiteral, v.Reason)
	}
}

func TestValidate_AcceptsOrdinaryLiterals(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders WHERE region = 'pacific northwest'`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
}

func TestValidate_ExpandsMetricAlias(t *testing.T) {
	v := validate(t, `SELECT region, revenue FROM sales.orders o JOIN sales.customers c ON o.customer_id = c.customer_id GROUP BY region`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.Contains(t, v.NormalizedText, `(SUM("amount"))`)
	assert.NotContains(t, v.NormalizedText, "revenue")
}

func TestValidate_QualifiedRefIsNotAMetric(t *testing.T) {
	// A qualified reference never expands; "revenue" is not a real column.
	v := validate(t, `SELECT o.revenue FROM sales.orders o`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownColumn, v.Reason)
}

func TestValidate_SubquerySeesSameRules(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders WHERE customer_id IN (SELECT customer_id FROM hr.payroll)`)
	require.False(t, v.Accepted)
	assert.Equal(t, domain.ReasonUnknownTable, v.Reason)
}

func TestValidate_UnionLastCoreCarriesLimit(t *testing.T) {
	v := validate(t, `SELECT order_id FROM sales.orders UNION SELECT customer_id FROM sales.customers`)
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.True(t, strings.HasSuffix(v.NormalizedText, "LIMIT 100"), "got %q", v.NormalizedText)
}

func TestCheckContext(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, CheckContext(salesContext()))
	})

	t.Run("metric does not parse", func(t *testing.T) {
		dc := salesContext()
		dc.Metrics["broken"] = "SUM(amount"
		err := CheckContext(dc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("metric references undeclared column", func(t *testing.T) {
		dc := salesContext()
		dc.Metrics["margin"] = "SUM(profit)"
		err := CheckContext(dc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profit")
	})

	t.Run("table without columns", func(t *testing.T) {
		dc := salesContext()
		dc.Tables = append(dc.Tables, domain.TableSpec{QualifiedName: "sales.empty"})
		err := CheckContext(dc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sales.empty")
	})
}
