package sqlparse

import (
	"strconv"
	"strings"
)

// Format formats a statement AST back to a SQL string. The output is flat,
// keywords are uppercase, and identifiers are always double-quoted.
func Format(stmt Stmt) string {
	f := &formatter{}
	f.formatStmt(stmt)
	return strings.TrimSpace(f.buf.String())
}

// FormatExpr formats an expression AST back to a SQL string.
func FormatExpr(expr Expr) string {
	f := &formatter{}
	f.formatExpr(expr)
	return strings.TrimSpace(f.buf.String())
}

// formatter is a simple SQL string builder. No indentation or pretty-printing.
type formatter struct {
	buf strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) space() {
	f.buf.WriteByte(' ')
}

// quoteIdent unconditionally double-quotes an identifier.
// Internal double quotes are escaped by doubling.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteString single-quotes a string literal, doubling embedded quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// writeIdent writes a quoted identifier. Dotted qualifiers are quoted
// part by part.
func (f *formatter) writeIdent(s string) {
	parts := strings.Split(s, ".")
	for i, part := range parts {
		if i > 0 {
			f.write(".")
		}
		f.write(quoteIdent(part))
	}
}

// commaSep writes items separated by ", ".
func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}

// === Statements ===

func (f *formatter) formatStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *SelectStmt:
		f.formatSelect(s)
	case *OtherStmt:
		// Classification-only statements are re-emitted verbatim. The
		// guardrail rejects them before anything is formatted.
		f.write(s.Raw)
	}
}

func (f *formatter) formatSelect(sel *SelectStmt) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		f.write("WITH ")
		if sel.With.Recursive {
			f.write("RECURSIVE ")
		}
		f.commaSep(len(sel.With.CTEs), func(i int) {
			cte := sel.With.CTEs[i]
			f.writeIdent(cte.Name)
			if len(cte.Columns) > 0 {
				f.write(" (")
				f.commaSep(len(cte.Columns), func(j int) {
					f.writeIdent(cte.Columns[j])
				})
				f.write(")")
			}
			f.write(" AS (")
			f.formatBody(cte.Select.Body)
			f.write(")")
		})
		f.space()
	}
	f.formatBody(sel.Body)
}

func (f *formatter) formatBody(body *SelectBody) {
	if body == nil {
		return
	}
	f.formatCore(body.Left)
	if body.Op != SetOpNone {
		f.space()
		f.write(string(body.Op))
		if body.All {
			f.write(" ALL")
		}
		f.space()
		f.formatBody(body.Right)
	}
}

func (f *formatter) formatCore(core *SelectCore) {
	if core == nil {
		return
	}
	f.write("SELECT ")
	if core.Distinct {
		f.write("DISTINCT ")
	}
	f.commaSep(len(core.Columns), func(i int) {
		item := core.Columns[i]
		switch {
		case item.Star:
			f.write("*")
		case item.TableStar != "":
			f.writeIdent(item.TableStar)
			f.write(".*")
		default:
			f.formatExpr(item.Expr)
			if item.Alias != "" {
				f.write(" AS ")
				f.writeIdent(item.Alias)
			}
		}
	})

	if core.From != nil {
		f.write(" FROM ")
		f.formatTableRef(core.From.Source)
		for _, join := range core.From.Joins {
			f.formatJoin(join)
		}
	}
	if core.Where != nil {
		f.write(" WHERE ")
		f.formatExpr(core.Where)
	}
	if len(core.GroupBy) > 0 {
		f.write(" GROUP BY ")
		f.commaSep(len(core.GroupBy), func(i int) {
			f.formatExpr(core.GroupBy[i])
		})
	}
	if core.Having != nil {
		f.write(" HAVING ")
		f.formatExpr(core.Having)
	}
	if len(core.OrderBy) > 0 {
		f.write(" ORDER BY ")
		f.formatOrderBy(core.OrderBy)
	}
	if core.Limit != nil {
		f.write(" LIMIT ")
		f.formatExpr(core.Limit)
	}
	if core.Offset != nil {
		f.write(" OFFSET ")
		f.formatExpr(core.Offset)
	}
}

func (f *formatter) formatOrderBy(items []OrderByItem) {
	f.commaSep(len(items), func(i int) {
		item := items[i]
		f.formatExpr(item.Expr)
		if item.Desc {
			f.write(" DESC")
		}
		if item.NullsFirst != nil {
			if *item.NullsFirst {
				f.write(" NULLS FIRST")
			} else {
				f.write(" NULLS LAST")
			}
		}
	})
}

func (f *formatter) formatJoin(join *Join) {
	switch join.Type {
	case JoinComma:
		f.write(", ")
		f.formatTableRef(join.Right)
		return
	case JoinCross:
		f.write(" CROSS JOIN ")
	default:
		f.space()
		if join.Natural {
			f.write("NATURAL ")
		}
		f.write(string(join.Type))
		f.write(" JOIN ")
	}
	f.formatTableRef(join.Right)
	if join.Condition != nil {
		f.write(" ON ")
		f.formatExpr(join.Condition)
	}
	if len(join.Using) > 0 {
		f.write(" USING (")
		f.commaSep(len(join.Using), func(i int) {
			f.writeIdent(join.Using[i])
		})
		f.write(")")
	}
}

func (f *formatter) formatTableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		if t.Catalog != "" {
			f.writeIdent(t.Catalog)
			f.write(".")
		}
		if t.Schema != "" {
			f.writeIdent(t.Schema)
			f.write(".")
		}
		f.writeIdent(t.Name)
		if t.Alias != "" {
			f.write(" AS ")
			f.writeIdent(t.Alias)
		}
	case *DerivedTable:
		f.write("(")
		f.formatSelect(t.Select)
		f.write(")")
		if t.Alias != "" {
			f.write(" AS ")
			f.writeIdent(t.Alias)
		}
	case *FuncTable:
		f.formatExpr(t.Func)
		if t.Alias != "" {
			f.write(" AS ")
			f.writeIdent(t.Alias)
		}
	}
}

// === Expressions ===

func (f *formatter) formatExpr(expr Expr) {
	switch e := expr.(type) {
	case nil:
		return
	case *ColumnRef:
		if e.Table != "" {
			f.writeIdent(e.Table)
			f.write(".")
		}
		f.writeIdent(e.Column)
	case *Literal:
		f.formatLiteral(e)
	case *BinaryExpr:
		f.formatExpr(e.Left)
		f.space()
		f.write(e.Op.String())
		f.space()
		f.formatExpr(e.Right)
	case *UnaryExpr:
		if e.Op == TOKEN_NOT {
			f.write("NOT ")
		} else {
			f.write(e.Op.String())
		}
		f.formatExpr(e.Expr)
	case *ParenExpr:
		f.write("(")
		f.formatExpr(e.Expr)
		f.write(")")
	case *FuncCall:
		f.formatFuncCall(e)
	case *CaseExpr:
		f.formatCase(e)
	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(e.Expr)
		f.write(" AS ")
		f.write(e.Type)
		f.write(")")
	case *InExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		f.write(" IN (")
		if e.Subquery != nil {
			f.formatSelect(e.Subquery)
		} else {
			f.commaSep(len(e.List), func(i int) {
				f.formatExpr(e.List[i])
			})
		}
		f.write(")")
	case *BetweenExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		f.write(" BETWEEN ")
		f.formatExpr(e.Low)
		f.write(" AND ")
		f.formatExpr(e.High)
	case *LikeExpr:
		f.formatExpr(e.Expr)
		if e.Not {
			f.write(" NOT")
		}
		if e.Insensitive {
			f.write(" ILIKE ")
		} else {
			f.write(" LIKE ")
		}
		f.formatExpr(e.Pattern)
	case *IsExpr:
		f.formatExpr(e.Expr)
		f.write(" IS ")
		if e.Not {
			f.write("NOT ")
		}
		f.write(e.What.String())
	case *ExistsExpr:
		if e.Not {
			f.write("NOT ")
		}
		f.write("EXISTS (")
		f.formatSelect(e.Subquery)
		f.write(")")
	case *SubqueryExpr:
		f.write("(")
		f.formatSelect(e.Select)
		f.write(")")
	}
}

func (f *formatter) formatLiteral(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		f.write(quoteString(lit.Value))
	default:
		f.write(lit.Value)
	}
}

func (f *formatter) formatFuncCall(fc *FuncCall) {
	f.write(strings.ToUpper(fc.Name))
	f.write("(")
	switch {
	case fc.Star:
		f.write("*")
	default:
		if fc.Distinct {
			f.write("DISTINCT ")
		}
		f.commaSep(len(fc.Args), func(i int) {
			f.formatExpr(fc.Args[i])
		})
	}
	f.write(")")
	if fc.Window != nil {
		f.write(" OVER (")
		f.formatWindowSpec(fc.Window)
		f.write(")")
	}
}

func (f *formatter) formatWindowSpec(spec *WindowSpec) {
	wrote := false
	if len(spec.PartitionBy) > 0 {
		f.write("PARTITION BY ")
		f.commaSep(len(spec.PartitionBy), func(i int) {
			f.formatExpr(spec.PartitionBy[i])
		})
		wrote = true
	}
	if len(spec.OrderBy) > 0 {
		if wrote {
			f.space()
		}
		f.write("ORDER BY ")
		f.formatOrderBy(spec.OrderBy)
		wrote = true
	}
	if spec.Frame != nil {
		if wrote {
			f.space()
		}
		f.formatFrame(spec.Frame)
	}
}

func (f *formatter) formatFrame(frame *FrameSpec) {
	if frame.Type == FrameRange {
		f.write("RANGE ")
	} else {
		f.write("ROWS ")
	}
	if frame.End != nil {
		f.write("BETWEEN ")
		f.formatFrameBound(frame.Start)
		f.write(" AND ")
		f.formatFrameBound(frame.End)
	} else {
		f.formatFrameBound(frame.Start)
	}
}

func (f *formatter) formatFrameBound(bound *FrameBound) {
	if bound == nil {
		return
	}
	switch bound.Type {
	case BoundUnboundedPreceding:
		f.write("UNBOUNDED PRECEDING")
	case BoundUnboundedFollowing:
		f.write("UNBOUNDED FOLLOWING")
	case BoundCurrentRow:
		f.write("CURRENT ROW")
	case BoundPreceding:
		f.formatExpr(bound.Value)
		f.write(" PRECEDING")
	case BoundFollowing:
		f.formatExpr(bound.Value)
		f.write(" FOLLOWING")
	}
}

// formatCase writes CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (f *formatter) formatCase(c *CaseExpr) {
	f.write("CASE")
	if c.Operand != nil {
		f.space()
		f.formatExpr(c.Operand)
	}
	for _, when := range c.Whens {
		f.write(" WHEN ")
		f.formatExpr(when.When)
		f.write(" THEN ")
		f.formatExpr(when.Then)
	}
	if c.Else != nil {
		f.write(" ELSE ")
		f.formatExpr(c.Else)
	}
	f.write(" END")
}

// LimitValue extracts the literal integer value of a LIMIT expression, when
// it is a plain number.
func LimitValue(expr Expr) (int, bool) {
	lit, ok := expr.(*Literal)
	if !ok || lit.Type != LiteralNumber {
		return 0, false
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}
