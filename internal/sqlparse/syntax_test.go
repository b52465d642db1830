package sqlparse

// Syntax sweep for the SELECT grammar the guardrail validates. Each case is
// one statement that must parse, and whose formatted output must parse again.
// Cases are grouped by syntax area.

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syntaxCase struct {
	name string
	sql  string
}

var synComparison = []syntaxCase{
	{name: "eq", sql: `SELECT a FROM t WHERE a = 1`},
	{name: "ne_angle", sql: `SELECT a FROM t WHERE a <> 1`},
	{name: "ne_bang", sql: `SELECT a FROM t WHERE a != 1`},
	{name: "lt", sql: `SELECT a FROM t WHERE a < 1`},
	{name: "gt", sql: `SELECT a FROM t WHERE a > 1`},
	{name: "le", sql: `SELECT a FROM t WHERE a <= 1`},
	{name: "ge", sql: `SELECT a FROM t WHERE a >= 1`},
	{name: "is_null", sql: `SELECT a FROM t WHERE b IS NULL`},
	{name: "is_not_null", sql: `SELECT a FROM t WHERE b IS NOT NULL`},
	{name: "is_true", sql: `SELECT a FROM t WHERE active IS TRUE`},
	{name: "is_not_false", sql: `SELECT a FROM t WHERE active IS NOT FALSE`},
	{name: "between", sql: `SELECT a FROM t WHERE a BETWEEN 1 AND 10`},
	{name: "not_between", sql: `SELECT a FROM t WHERE a NOT BETWEEN 1 AND 10`},
	{name: "in_list", sql: `SELECT a FROM t WHERE a IN (1, 2, 3)`},
	{name: "not_in_list", sql: `SELECT a FROM t WHERE a NOT IN ('x', 'y')`},
	{name: "like", sql: `SELECT a FROM t WHERE name LIKE 'A%'`},
	{name: "not_like", sql: `SELECT a FROM t WHERE name NOT LIKE 'A%'`},
	{name: "ilike", sql: `SELECT a FROM t WHERE name ILIKE '%acme%'`},
	{name: "not_ilike", sql: `SELECT a FROM t WHERE name NOT ILIKE '%acme%'`},
}

var synLogical = []syntaxCase{
	{name: "and", sql: `SELECT a FROM t WHERE a = 1 AND b = 2`},
	{name: "or", sql: `SELECT a FROM t WHERE a = 1 OR b = 2`},
	{name: "not", sql: `SELECT a FROM t WHERE NOT deleted`},
	{name: "compound", sql: `SELECT a FROM t WHERE a = 1 AND b = 2 OR NOT c`},
	{name: "parenthesized", sql: `SELECT a FROM t WHERE (a = 1 OR b = 2) AND c = 3`},
}

var synArithmetic = []syntaxCase{
	{name: "add", sql: `SELECT a + b FROM t`},
	{name: "subtract", sql: `SELECT a - b FROM t`},
	{name: "multiply", sql: `SELECT a * b FROM t`},
	{name: "divide", sql: `SELECT a / b FROM t`},
	{name: "modulo", sql: `SELECT a % b FROM t`},
	{name: "concat", sql: `SELECT first_name || ' ' || last_name FROM t`},
	{name: "unary_minus", sql: `SELECT -a FROM t`},
	{name: "unary_plus", sql: `SELECT +a FROM t`},
	{name: "precedence_mix", sql: `SELECT a + b * c - d / 2 FROM t`},
	{name: "paren_grouping", sql: `SELECT (a + b) * c FROM t`},
}

var synLiterals = []syntaxCase{
	{name: "integer", sql: `SELECT 42`},
	{name: "decimal", sql: `SELECT 3.14`},
	{name: "scientific", sql: `SELECT 1.5e10`},
	{name: "string", sql: `SELECT 'hello'`},
	{name: "string_escaped_quote", sql: `SELECT 'it''s'`},
	{name: "booleans", sql: `SELECT TRUE, FALSE`},
	{name: "null", sql: `SELECT NULL`},
}

var synIdentifiers = []syntaxCase{
	{name: "unquoted", sql: `SELECT order_id FROM orders`},
	{name: "qualified", sql: `SELECT o.order_id FROM orders o`},
	{name: "schema_qualified_table", sql: `SELECT a FROM sales.orders`},
	{name: "catalog_qualified_table", sql: `SELECT a FROM lake.sales.orders`},
	{name: "double_quoted", sql: `SELECT "order total" FROM "monthly report"`},
	{name: "quote_escape", sql: `SELECT "we""ird" FROM t`},
	{name: "backtick_quoted", sql: "SELECT `order total` FROM `t`"},
	{name: "underscore_leading", sql: `SELECT _hidden FROM t`},
}

var synSelectList = []syntaxCase{
	{name: "star", sql: `SELECT * FROM t`},
	{name: "table_star", sql: `SELECT t.* FROM t`},
	{name: "distinct", sql: `SELECT DISTINCT region FROM t`},
	{name: "alias_as", sql: `SELECT amount AS total FROM t`},
	{name: "alias_bare", sql: `SELECT amount total FROM t`},
	{name: "mixed_star_and_exprs", sql: `SELECT o.*, d.name FROM o, d`},
}

var synCase = []syntaxCase{
	{name: "searched", sql: `SELECT CASE WHEN a > 1 THEN 'big' ELSE 'small' END FROM t`},
	{name: "simple", sql: `SELECT CASE status WHEN 1 THEN 'open' WHEN 2 THEN 'closed' END FROM t`},
	{name: "no_else", sql: `SELECT CASE WHEN a THEN b END FROM t`},
	{name: "nested", sql: `SELECT CASE WHEN a THEN CASE WHEN b THEN 1 ELSE 2 END ELSE 3 END FROM t`},
}

var synCast = []syntaxCase{
	{name: "cast_call", sql: `SELECT CAST(a AS VARCHAR) FROM t`},
	{name: "cast_precision", sql: `SELECT CAST(a AS DECIMAL(10, 2)) FROM t`},
	{name: "postfix", sql: `SELECT a::BIGINT FROM t`},
	{name: "postfix_precision", sql: `SELECT a::DECIMAL(18, 2) FROM t`},
	{name: "double_precision", sql: `SELECT a::DOUBLE PRECISION FROM t`},
	{name: "character_varying", sql: `SELECT CAST(a AS CHARACTER VARYING) FROM t`},
}

var synFunctions = []syntaxCase{
	{name: "count_star", sql: `SELECT COUNT(*) FROM t`},
	{name: "count_distinct", sql: `SELECT COUNT(DISTINCT region) FROM t`},
	{name: "no_args", sql: `SELECT NOW()`},
	{name: "multi_args", sql: `SELECT COALESCE(a, b, 0) FROM t`},
	{name: "nested_calls", sql: `SELECT ROUND(AVG(amount), 2) FROM t`},
	{name: "in_where", sql: `SELECT a FROM t WHERE LOWER(name) = 'acme'`},
}

var synWindows = []syntaxCase{
	{name: "over_empty", sql: `SELECT ROW_NUMBER() OVER () FROM t`},
	{name: "partition", sql: `SELECT RANK() OVER (PARTITION BY region) FROM t`},
	{name: "partition_order", sql: `SELECT ROW_NUMBER() OVER (PARTITION BY region ORDER BY amount DESC) FROM t`},
	{name: "rows_frame", sql: `SELECT SUM(amount) OVER (ORDER BY d ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) FROM t`},
	{name: "rows_numeric_bounds", sql: `SELECT SUM(amount) OVER (ORDER BY d ROWS BETWEEN 3 PRECEDING AND 1 FOLLOWING) FROM t`},
	{name: "range_frame", sql: `SELECT SUM(amount) OVER (ORDER BY d RANGE UNBOUNDED PRECEDING) FROM t`},
	{name: "unbounded_following", sql: `SELECT SUM(amount) OVER (ORDER BY d ROWS BETWEEN CURRENT ROW AND UNBOUNDED FOLLOWING) FROM t`},
}

var synSubqueries = []syntaxCase{
	{name: "scalar", sql: `SELECT (SELECT MAX(amount) FROM orders) AS top`},
	{name: "in_subquery", sql: `SELECT a FROM t WHERE id IN (SELECT id FROM u)`},
	{name: "not_in_subquery", sql: `SELECT a FROM t WHERE id NOT IN (SELECT id FROM u)`},
	{name: "exists", sql: `SELECT a FROM t WHERE EXISTS (SELECT 1 FROM u WHERE u.id = t.id)`},
	{name: "not_exists", sql: `SELECT a FROM t WHERE NOT EXISTS (SELECT 1 FROM u)`},
	{name: "derived_table", sql: `SELECT s.a FROM (SELECT a FROM t WHERE a > 0) AS s`},
	{name: "derived_table_bare_alias", sql: `SELECT s.a FROM (SELECT a FROM t) s`},
	{name: "in_with_cte", sql: `SELECT a FROM t WHERE id IN (WITH c AS (SELECT id FROM u) SELECT id FROM c)`},
	{name: "comparison_to_scalar", sql: `SELECT a FROM t WHERE amount > (SELECT AVG(amount) FROM t)`},
}

var synJoins = []syntaxCase{
	{name: "comma", sql: `SELECT * FROM a, b`},
	{name: "cross", sql: `SELECT * FROM a CROSS JOIN b`},
	{name: "bare_join", sql: `SELECT * FROM a JOIN b ON a.id = b.id`},
	{name: "inner", sql: `SELECT * FROM a INNER JOIN b ON a.id = b.id`},
	{name: "left", sql: `SELECT * FROM a LEFT JOIN b ON a.id = b.id`},
	{name: "left_outer", sql: `SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id`},
	{name: "right", sql: `SELECT * FROM a RIGHT JOIN b ON a.id = b.id`},
	{name: "full_outer", sql: `SELECT * FROM a FULL OUTER JOIN b ON a.id = b.id`},
	{name: "natural", sql: `SELECT * FROM a NATURAL JOIN b`},
	{name: "using_single", sql: `SELECT * FROM a JOIN b USING (id)`},
	{name: "using_multi", sql: `SELECT * FROM a JOIN b USING (id, dt)`},
	{name: "chained", sql: `SELECT * FROM a JOIN b ON a.id = b.id LEFT JOIN c ON b.id = c.id`},
	{name: "aliased_sides", sql: `SELECT x.a, y.b FROM long_name x JOIN other_name AS y ON x.id = y.id`},
	{name: "derived_right_side", sql: `SELECT * FROM a JOIN (SELECT id FROM b) s ON a.id = s.id`},
}

var synCTEs = []syntaxCase{
	{name: "single", sql: `WITH c AS (SELECT a FROM t) SELECT a FROM c`},
	{name: "multiple", sql: `WITH c1 AS (SELECT a FROM t), c2 AS (SELECT a FROM c1) SELECT a FROM c2`},
	{name: "column_list", sql: `WITH c (x, y) AS (SELECT a, b FROM t) SELECT x FROM c`},
	{name: "recursive", sql: `WITH RECURSIVE r AS (SELECT 1 UNION ALL SELECT n + 1 FROM r WHERE n < 5) SELECT * FROM r`},
	{name: "cte_body_with_setop", sql: `WITH c AS (SELECT a FROM t UNION SELECT a FROM u) SELECT a FROM c`},
}

var synSetOps = []syntaxCase{
	{name: "union", sql: `SELECT a FROM t UNION SELECT a FROM u`},
	{name: "union_all", sql: `SELECT a FROM t UNION ALL SELECT a FROM u`},
	{name: "union_distinct", sql: `SELECT a FROM t UNION DISTINCT SELECT a FROM u`},
	{name: "intersect", sql: `SELECT a FROM t INTERSECT SELECT a FROM u`},
	{name: "except", sql: `SELECT a FROM t EXCEPT SELECT a FROM u`},
	{name: "chained", sql: `SELECT a FROM t UNION SELECT a FROM u UNION ALL SELECT a FROM v`},
	{name: "parenthesized_left", sql: `(SELECT a FROM t) UNION SELECT a FROM u`},
	{name: "parenthesized_right", sql: `SELECT a FROM t UNION (SELECT a FROM u)`},
}

var synClauses = []syntaxCase{
	{name: "group_by", sql: `SELECT region, SUM(amount) FROM t GROUP BY region`},
	{name: "group_by_multi", sql: `SELECT region, dept, COUNT(*) FROM t GROUP BY region, dept`},
	{name: "having", sql: `SELECT region FROM t GROUP BY region HAVING COUNT(*) > 5`},
	{name: "order_by", sql: `SELECT a FROM t ORDER BY a`},
	{name: "order_by_desc", sql: `SELECT a FROM t ORDER BY a DESC`},
	{name: "order_by_asc_explicit", sql: `SELECT a FROM t ORDER BY a ASC`},
	{name: "order_by_multi", sql: `SELECT a, b FROM t ORDER BY a DESC, b`},
	{name: "nulls_first", sql: `SELECT a FROM t ORDER BY a NULLS FIRST`},
	{name: "nulls_last", sql: `SELECT a FROM t ORDER BY a DESC NULLS LAST`},
	{name: "limit", sql: `SELECT a FROM t LIMIT 10`},
	{name: "limit_offset", sql: `SELECT a FROM t LIMIT 10 OFFSET 20`},
	{name: "offset_rows", sql: `SELECT a FROM t ORDER BY a OFFSET 5 ROWS`},
	{name: "order_by_ordinal_expr", sql: `SELECT a, COUNT(*) FROM t GROUP BY a ORDER BY COUNT(*) DESC`},
}

var synTableFunctions = []syntaxCase{
	{name: "bare", sql: `SELECT * FROM read_files('s3://bucket/*.parquet')`},
	{name: "aliased", sql: `SELECT rf.a FROM read_files('x.parquet') AS rf`},
	{name: "multi_arg", sql: `SELECT * FROM generate_series(1, 100) g`},
}

var synComments = []syntaxCase{
	{name: "trailing_line", sql: "SELECT a FROM t -- picked columns"},
	{name: "leading_block", sql: "/* header */ SELECT a FROM t"},
	{name: "inline_block", sql: "SELECT a /* middle */ FROM t"},
	{name: "line_between_clauses", sql: "SELECT a -- list\nFROM t"},
}

func allSyntaxGroups() []struct {
	group string
	cases []syntaxCase
} {
	return []struct {
		group string
		cases []syntaxCase
	}{
		{"comparison", synComparison},
		{"logical", synLogical},
		{"arithmetic", synArithmetic},
		{"literals", synLiterals},
		{"identifiers", synIdentifiers},
		{"select_list", synSelectList},
		{"case", synCase},
		{"cast", synCast},
		{"functions", synFunctions},
		{"windows", synWindows},
		{"subqueries", synSubqueries},
		{"joins", synJoins},
		{"ctes", synCTEs},
		{"set_ops", synSetOps},
		{"clauses", synClauses},
		{"table_functions", synTableFunctions},
		{"comments", synComments},
	}
}

func TestSyntax_Parse(t *testing.T) {
	for _, g := range allSyntaxGroups() {
		t.Run(g.group, func(t *testing.T) {
			for _, tc := range g.cases {
				t.Run(tc.name, func(t *testing.T) {
					stmt, err := Parse(tc.sql)
					require.NoError(t, err, "Parse(%q) failed", tc.sql)
					require.IsType(t, &SelectStmt{}, stmt)
				})
			}
		})
	}
}

func TestSyntax_RoundTrip(t *testing.T) {
	for _, g := range allSyntaxGroups() {
		t.Run(g.group, func(t *testing.T) {
			for _, tc := range g.cases {
				t.Run(tc.name, func(t *testing.T) {
					stmt, err := Parse(tc.sql)
					require.NoError(t, err)

					formatted := Format(stmt)
					assert.NotEmpty(t, formatted, "Format produced empty string for %q", tc.sql)

					_, err = Parse(formatted)
					require.NoError(t, err, "re-parse of formatted SQL failed.\nOriginal: %s\nFormatted: %s", tc.sql, formatted)
				})
			}
		})
	}
}
