package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qualifiedNames(tables []*TableName) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Qualified())
	}
	return names
}

func TestCollectTables_AllPositions(t *testing.T) {
	sel := mustSelect(t, `
		WITH recent AS (SELECT id FROM sales.orders WHERE d > '2026-01-01')
		SELECT r.id, d.name
		FROM recent r
		JOIN sales.depts d ON r.id = d.id
		WHERE r.id IN (SELECT order_id FROM sales.refunds)
		  AND EXISTS (SELECT 1 FROM sales.audits a WHERE a.order_id = r.id)`)

	got := qualifiedNames(CollectTables(sel))
	assert.ElementsMatch(t, []string{
		"sales.orders",
		"recent",
		"sales.depts",
		"sales.refunds",
		"sales.audits",
	}, got)
}

func TestCollectTables_DerivedTable(t *testing.T) {
	sel := mustSelect(t, `SELECT s.a FROM (SELECT a FROM sales.orders) s`)
	got := qualifiedNames(CollectTables(sel))
	assert.Equal(t, []string{"sales.orders"}, got)
}

func TestCollectTables_SetOperands(t *testing.T) {
	sel := mustSelect(t, `SELECT a FROM t UNION SELECT a FROM u EXCEPT SELECT a FROM v`)
	got := qualifiedNames(CollectTables(sel))
	assert.ElementsMatch(t, []string{"t", "u", "v"}, got)
}

func TestCollectFuncTables(t *testing.T) {
	sel := mustSelect(t, `SELECT rf.a FROM read_files('s3://x/*.parquet') AS rf JOIN t ON rf.id = t.id`)
	funcs := CollectFuncTables(sel)
	require.Len(t, funcs, 1)
	assert.Equal(t, "read_files", funcs[0].Func.Name)
	assert.Equal(t, "rf", funcs[0].Alias)
}

func TestCTENames_IncludesNested(t *testing.T) {
	sel := mustSelect(t, `
		WITH Outer_CTE AS (SELECT a FROM t)
		SELECT a FROM Outer_CTE
		WHERE a IN (WITH inner_cte AS (SELECT b FROM u) SELECT b FROM inner_cte)`)

	names := CTENames(sel)
	assert.True(t, names["outer_cte"], "CTE names are lowercased")
	assert.True(t, names["inner_cte"])
	assert.Len(t, names, 2)
}

func TestCollectAliases(t *testing.T) {
	sel := mustSelect(t, `
		WITH c (cx) AS (SELECT a FROM t)
		SELECT o.amount AS Total, s.a
		FROM orders o
		JOIN (SELECT a FROM u) AS s ON s.a = o.id`)

	aliases := CollectAliases(sel)
	for _, want := range []string{"cx", "total", "o", "s"} {
		assert.True(t, aliases[want], "missing alias %q", want)
	}
}

func TestCollectColumnRefs_ReachesJoinsAndSubqueries(t *testing.T) {
	sel := mustSelect(t, `
		SELECT o.amount
		FROM orders o
		JOIN depts d ON o.dept_id = d.id
		WHERE o.id IN (SELECT order_id FROM refunds)`)

	var cols []string
	for _, ref := range CollectColumnRefs(sel) {
		cols = append(cols, ref.Column)
	}
	assert.ElementsMatch(t, []string{"amount", "dept_id", "id", "id", "order_id"}, cols)
}

func TestWalkExprs_DescendsIntoDerivedTables(t *testing.T) {
	sel := mustSelect(t, `SELECT s.n FROM (SELECT a + 1 AS n FROM t WHERE a > 2) s LIMIT 3`)

	var literals []string
	WalkExprs(sel, func(e Expr) {
		if lit, ok := e.(*Literal); ok {
			literals = append(literals, lit.Value)
		}
	})
	assert.ElementsMatch(t, []string{"1", "2", "3"}, literals)
}

func TestCollectCores(t *testing.T) {
	sel := mustSelect(t, `
		WITH c AS (SELECT a FROM t)
		SELECT a FROM c
		UNION
		SELECT b FROM (SELECT b FROM u) s`)

	// CTE body, both set operands, and the derived table.
	assert.Len(t, CollectCores(sel), 4)
}

func TestOuterCore(t *testing.T) {
	sel := mustSelect(t, `SELECT a FROM t LIMIT 7`)
	core := OuterCore(sel)
	require.NotNil(t, core)
	n, ok := LimitValue(core.Limit)
	require.True(t, ok)
	assert.Equal(t, 7, n)

	assert.Nil(t, OuterCore(&OtherStmt{Kind: KindDelete, Raw: "DELETE FROM t"}))
}

func TestOuterCore_SetOpChain(t *testing.T) {
	sel := mustSelect(t, `SELECT a FROM t UNION SELECT b FROM u ORDER BY b LIMIT 4`)
	core := OuterCore(sel)
	require.NotNil(t, core)
	n, ok := LimitValue(core.Limit)
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestRewriteColumnRefs_ExpandsMetric(t *testing.T) {
	sel := mustSelect(t, `SELECT region, net_revenue FROM sales.orders GROUP BY region`)

	defn, err := ParseExpr(`amount - discount`)
	require.NoError(t, err)

	RewriteColumnRefs(sel, func(ref *ColumnRef) Expr {
		if ref.Table == "" && ref.Column == "net_revenue" {
			return &ParenExpr{Expr: defn}
		}
		return nil
	})

	got := Format(sel)
	assert.Equal(t, `SELECT "region", ("amount" - "discount") FROM "sales"."orders" GROUP BY "region"`, got)
}

func TestRewriteColumnRefs_ReachesWhereAndSubqueries(t *testing.T) {
	sel := mustSelect(t, `SELECT a FROM t WHERE m > 10 AND id IN (SELECT id FROM u WHERE m < 5)`)

	replaced := 0
	RewriteColumnRefs(sel, func(ref *ColumnRef) Expr {
		if ref.Column == "m" {
			replaced++
			return &ColumnRef{Column: "margin"}
		}
		return nil
	})

	assert.Equal(t, 2, replaced)
	formatted := Format(sel)
	assert.NotContains(t, formatted, `"m"`)
	assert.Contains(t, formatted, `"margin" > 10`)
	assert.Contains(t, formatted, `"margin" < 5`)
}
