package sqlparse

import "strings"

// CollectTables returns every TableName referenced anywhere in the
// statement: FROM sources, joins, subqueries, and CTE bodies.
func CollectTables(stmt Stmt) []*TableName {
	var tables []*TableName
	if sel, ok := stmt.(*SelectStmt); ok {
		collectTablesFromSelect(sel, &tables)
	}
	return tables
}

// CollectFuncTables returns every table-valued function used as a FROM
// source anywhere in the statement.
func CollectFuncTables(stmt Stmt) []*FuncTable {
	var funcs []*FuncTable
	if sel, ok := stmt.(*SelectStmt); ok {
		collectFuncTablesFromSelect(sel, &funcs)
	}
	return funcs
}

// CTENames returns the lowercase names of every CTE defined anywhere in the
// statement, including CTEs of nested subqueries.
func CTENames(stmt Stmt) map[string]bool {
	names := make(map[string]bool)
	if sel, ok := stmt.(*SelectStmt); ok {
		collectCTENames(sel, names)
	}
	return names
}

// CollectColumnRefs returns every column reference in the statement,
// including those inside subqueries and join conditions.
func CollectColumnRefs(stmt Stmt) []*ColumnRef {
	var refs []*ColumnRef
	if sel, ok := stmt.(*SelectStmt); ok {
		walkSelectExprs(sel, func(e Expr) {
			if ref, ok := e.(*ColumnRef); ok {
				refs = append(refs, ref)
			}
		})
	}
	return refs
}

// WalkExprs visits every expression in the statement, descending into CTEs,
// subqueries, and derived tables.
func WalkExprs(stmt Stmt, fn func(Expr)) {
	if sel, ok := stmt.(*SelectStmt); ok {
		walkSelectExprs(sel, fn)
	}
}

// CollectAliases returns the lowercase set of names the query itself
// defines: table aliases, derived-table aliases, and select-list aliases.
// A reference to one of these is not a schema reference.
func CollectAliases(stmt Stmt) map[string]bool {
	aliases := make(map[string]bool)
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		return aliases
	}
	collectAliasesFromSelect(sel, aliases)
	return aliases
}

func collectAliasesFromSelect(sel *SelectStmt, aliases map[string]bool) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			for _, col := range cte.Columns {
				aliases[strings.ToLower(col)] = true
			}
			collectAliasesFromSelect(cte.Select, aliases)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		collectAliasesFromCore(body.Left, aliases)
		if body.Op == SetOpNone {
			break
		}
	}
}

func collectAliasesFromCore(core *SelectCore, aliases map[string]bool) {
	if core == nil {
		return
	}
	for _, item := range core.Columns {
		if item.Alias != "" {
			aliases[strings.ToLower(item.Alias)] = true
		}
	}
	if core.From != nil {
		collectAliasesFromTableRef(core.From.Source, aliases)
		for _, join := range core.From.Joins {
			collectAliasesFromTableRef(join.Right, aliases)
		}
	}
	// Subqueries in expressions can define their own aliases.
	walkCoreExprs(core, func(e Expr) {
		switch sub := e.(type) {
		case *SubqueryExpr:
			collectAliasesFromSelect(sub.Select, aliases)
		case *ExistsExpr:
			collectAliasesFromSelect(sub.Subquery, aliases)
		case *InExpr:
			collectAliasesFromSelect(sub.Subquery, aliases)
		}
	})
}

func collectAliasesFromTableRef(ref TableRef, aliases map[string]bool) {
	switch t := ref.(type) {
	case *TableName:
		if t.Alias != "" {
			aliases[strings.ToLower(t.Alias)] = true
		}
	case *DerivedTable:
		if t.Alias != "" {
			aliases[strings.ToLower(t.Alias)] = true
		}
		collectAliasesFromSelect(t.Select, aliases)
	case *FuncTable:
		if t.Alias != "" {
			aliases[strings.ToLower(t.Alias)] = true
		}
	}
}

// === Table collection ===

func collectTablesFromSelect(sel *SelectStmt, tables *[]*TableName) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			collectTablesFromSelect(cte.Select, tables)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		collectTablesFromCore(body.Left, tables)
		if body.Op == SetOpNone {
			break
		}
	}
}

func collectTablesFromCore(core *SelectCore, tables *[]*TableName) {
	if core == nil {
		return
	}
	if core.From != nil {
		collectTablesFromTableRef(core.From.Source, tables)
		for _, join := range core.From.Joins {
			collectTablesFromTableRef(join.Right, tables)
		}
	}
	walkCoreExprs(core, func(e Expr) {
		switch sub := e.(type) {
		case *SubqueryExpr:
			collectTablesFromSelect(sub.Select, tables)
		case *ExistsExpr:
			collectTablesFromSelect(sub.Subquery, tables)
		case *InExpr:
			collectTablesFromSelect(sub.Subquery, tables)
		}
	})
}

func collectTablesFromTableRef(ref TableRef, tables *[]*TableName) {
	switch t := ref.(type) {
	case *TableName:
		*tables = append(*tables, t)
	case *DerivedTable:
		collectTablesFromSelect(t.Select, tables)
	}
}

func collectFuncTablesFromSelect(sel *SelectStmt, funcs *[]*FuncTable) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			collectFuncTablesFromSelect(cte.Select, funcs)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		core := body.Left
		if core != nil && core.From != nil {
			collectFuncTablesFromRef(core.From.Source, funcs)
			for _, join := range core.From.Joins {
				collectFuncTablesFromRef(join.Right, funcs)
			}
		}
		if core != nil {
			walkCoreExprs(core, func(e Expr) {
				switch sub := e.(type) {
				case *SubqueryExpr:
					collectFuncTablesFromSelect(sub.Select, funcs)
				case *ExistsExpr:
					collectFuncTablesFromSelect(sub.Subquery, funcs)
				case *InExpr:
					collectFuncTablesFromSelect(sub.Subquery, funcs)
				}
			})
		}
		if body.Op == SetOpNone {
			break
		}
	}
}

func collectFuncTablesFromRef(ref TableRef, funcs *[]*FuncTable) {
	switch t := ref.(type) {
	case *FuncTable:
		*funcs = append(*funcs, t)
	case *DerivedTable:
		collectFuncTablesFromSelect(t.Select, funcs)
	}
}

func collectCTENames(sel *SelectStmt, names map[string]bool) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			names[strings.ToLower(cte.Name)] = true
			collectCTENames(cte.Select, names)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		if body.Left != nil {
			walkCoreExprs(body.Left, func(e Expr) {
				switch sub := e.(type) {
				case *SubqueryExpr:
					collectCTENames(sub.Select, names)
				case *ExistsExpr:
					collectCTENames(sub.Subquery, names)
				case *InExpr:
					collectCTENames(sub.Subquery, names)
				}
			})
			if body.Left.From != nil {
				collectCTENamesFromRef(body.Left.From.Source, names)
				for _, join := range body.Left.From.Joins {
					collectCTENamesFromRef(join.Right, names)
				}
			}
		}
		if body.Op == SetOpNone {
			break
		}
	}
}

func collectCTENamesFromRef(ref TableRef, names map[string]bool) {
	if d, ok := ref.(*DerivedTable); ok {
		collectCTENames(d.Select, names)
	}
}

// CollectCores returns every SelectCore in the statement: the outer chain,
// CTE bodies, derived tables, and expression-level subqueries.
func CollectCores(stmt Stmt) []*SelectCore {
	var cores []*SelectCore
	if sel, ok := stmt.(*SelectStmt); ok {
		collectCores(sel, &cores)
	}
	return cores
}

func collectCores(sel *SelectStmt, cores *[]*SelectCore) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			collectCores(cte.Select, cores)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		core := body.Left
		if core == nil {
			if body.Op == SetOpNone {
				break
			}
			continue
		}
		*cores = append(*cores, core)
		if core.From != nil {
			collectCoresFromRef(core.From.Source, cores)
			for _, join := range core.From.Joins {
				collectCoresFromRef(join.Right, cores)
			}
		}
		walkCoreExprs(core, func(e Expr) {
			switch sub := e.(type) {
			case *SubqueryExpr:
				collectCores(sub.Select, cores)
			case *ExistsExpr:
				collectCores(sub.Subquery, cores)
			case *InExpr:
				collectCores(sub.Subquery, cores)
			}
		})
		if body.Op == SetOpNone {
			break
		}
	}
}

func collectCoresFromRef(ref TableRef, cores *[]*SelectCore) {
	if d, ok := ref.(*DerivedTable); ok {
		collectCores(d.Select, cores)
	}
}

// OuterCore returns the core whose LIMIT governs the whole statement: the
// last core of the outer set-operation chain.
func OuterCore(stmt Stmt) *SelectCore {
	sel, ok := stmt.(*SelectStmt)
	if !ok || sel.Body == nil {
		return nil
	}
	body := sel.Body
	for body.Op != SetOpNone && body.Right != nil {
		body = body.Right
	}
	return body.Left
}

// === Expression walking ===

// walkSelectExprs visits every expression in the statement, depth first.
func walkSelectExprs(sel *SelectStmt, fn func(Expr)) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			walkSelectExprs(cte.Select, fn)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		walkCoreExprsDeep(body.Left, fn)
		if body.Op == SetOpNone {
			break
		}
	}
}

// walkCoreExprs visits the top-level expressions of one core (and recurses
// through expression trees, but not into nested select statements).
func walkCoreExprs(core *SelectCore, fn func(Expr)) {
	if core == nil {
		return
	}
	for _, item := range core.Columns {
		walkExpr(item.Expr, fn)
	}
	if core.From != nil {
		for _, join := range core.From.Joins {
			walkExpr(join.Condition, fn)
		}
	}
	walkExpr(core.Where, fn)
	for _, g := range core.GroupBy {
		walkExpr(g, fn)
	}
	walkExpr(core.Having, fn)
	for _, o := range core.OrderBy {
		walkExpr(o.Expr, fn)
	}
	walkExpr(core.Limit, fn)
	walkExpr(core.Offset, fn)
}

// walkCoreExprsDeep is walkCoreExprs plus recursion into derived tables and
// expression-level subqueries.
func walkCoreExprsDeep(core *SelectCore, fn func(Expr)) {
	if core == nil {
		return
	}
	walkCoreExprs(core, fn)
	walkCoreExprs(core, func(e Expr) {
		switch sub := e.(type) {
		case *SubqueryExpr:
			walkSelectExprs(sub.Select, fn)
		case *ExistsExpr:
			walkSelectExprs(sub.Subquery, fn)
		case *InExpr:
			if sub.Subquery != nil {
				walkSelectExprs(sub.Subquery, fn)
			}
		}
	})
	if core.From != nil {
		walkTableRefExprs(core.From.Source, fn)
		for _, join := range core.From.Joins {
			walkTableRefExprs(join.Right, fn)
		}
	}
}

func walkTableRefExprs(ref TableRef, fn func(Expr)) {
	switch t := ref.(type) {
	case *DerivedTable:
		walkSelectExprs(t.Select, fn)
	case *FuncTable:
		walkExpr(t.Func, fn)
	}
}

// walkExpr visits e and all sub-expressions, depth first.
func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *BinaryExpr:
		walkExpr(x.Left, fn)
		walkExpr(x.Right, fn)
	case *UnaryExpr:
		walkExpr(x.Expr, fn)
	case *ParenExpr:
		walkExpr(x.Expr, fn)
	case *FuncCall:
		for _, arg := range x.Args {
			walkExpr(arg, fn)
		}
		if x.Window != nil {
			for _, pe := range x.Window.PartitionBy {
				walkExpr(pe, fn)
			}
			for _, o := range x.Window.OrderBy {
				walkExpr(o.Expr, fn)
			}
		}
	case *CaseExpr:
		walkExpr(x.Operand, fn)
		for _, when := range x.Whens {
			walkExpr(when.When, fn)
			walkExpr(when.Then, fn)
		}
		walkExpr(x.Else, fn)
	case *CastExpr:
		walkExpr(x.Expr, fn)
	case *InExpr:
		walkExpr(x.Expr, fn)
		for _, item := range x.List {
			walkExpr(item, fn)
		}
	case *BetweenExpr:
		walkExpr(x.Expr, fn)
		walkExpr(x.Low, fn)
		walkExpr(x.High, fn)
	case *LikeExpr:
		walkExpr(x.Expr, fn)
		walkExpr(x.Pattern, fn)
	case *IsExpr:
		walkExpr(x.Expr, fn)
	}
}

// === Column rewriting ===

// RewriteColumnRefs replaces column references throughout the statement.
// fn returns the replacement expression, or nil to keep the reference.
// Used to expand metric aliases into their defining expressions before
// validation.
func RewriteColumnRefs(stmt Stmt, fn func(*ColumnRef) Expr) {
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		return
	}
	rewriteSelect(sel, fn)
}

func rewriteSelect(sel *SelectStmt, fn func(*ColumnRef) Expr) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			rewriteSelect(cte.Select, fn)
		}
	}
	for body := sel.Body; body != nil; body = body.Right {
		rewriteCore(body.Left, fn)
		if body.Op == SetOpNone {
			break
		}
	}
}

func rewriteCore(core *SelectCore, fn func(*ColumnRef) Expr) {
	if core == nil {
		return
	}
	for i := range core.Columns {
		core.Columns[i].Expr = rewriteExpr(core.Columns[i].Expr, fn)
	}
	if core.From != nil {
		rewriteTableRef(core.From.Source, fn)
		for _, join := range core.From.Joins {
			rewriteTableRef(join.Right, fn)
			join.Condition = rewriteExpr(join.Condition, fn)
		}
	}
	core.Where = rewriteExpr(core.Where, fn)
	for i := range core.GroupBy {
		core.GroupBy[i] = rewriteExpr(core.GroupBy[i], fn)
	}
	core.Having = rewriteExpr(core.Having, fn)
	for i := range core.OrderBy {
		core.OrderBy[i].Expr = rewriteExpr(core.OrderBy[i].Expr, fn)
	}
}

func rewriteTableRef(ref TableRef, fn func(*ColumnRef) Expr) {
	switch t := ref.(type) {
	case *DerivedTable:
		rewriteSelect(t.Select, fn)
	case *FuncTable:
		for i := range t.Func.Args {
			t.Func.Args[i] = rewriteExpr(t.Func.Args[i], fn)
		}
	}
}

func rewriteExpr(e Expr, fn func(*ColumnRef) Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ColumnRef:
		if repl := fn(x); repl != nil {
			return repl
		}
		return x
	case *BinaryExpr:
		x.Left = rewriteExpr(x.Left, fn)
		x.Right = rewriteExpr(x.Right, fn)
	case *UnaryExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
	case *ParenExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
	case *FuncCall:
		for i := range x.Args {
			x.Args[i] = rewriteExpr(x.Args[i], fn)
		}
		if x.Window != nil {
			for i := range x.Window.PartitionBy {
				x.Window.PartitionBy[i] = rewriteExpr(x.Window.PartitionBy[i], fn)
			}
			for i := range x.Window.OrderBy {
				x.Window.OrderBy[i].Expr = rewriteExpr(x.Window.OrderBy[i].Expr, fn)
			}
		}
	case *CaseExpr:
		x.Operand = rewriteExpr(x.Operand, fn)
		for i := range x.Whens {
			x.Whens[i].When = rewriteExpr(x.Whens[i].When, fn)
			x.Whens[i].Then = rewriteExpr(x.Whens[i].Then, fn)
		}
		x.Else = rewriteExpr(x.Else, fn)
	case *CastExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
	case *InExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
		for i := range x.List {
			x.List[i] = rewriteExpr(x.List[i], fn)
		}
		if x.Subquery != nil {
			rewriteSelect(x.Subquery, fn)
		}
	case *BetweenExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
		x.Low = rewriteExpr(x.Low, fn)
		x.High = rewriteExpr(x.High, fn)
	case *LikeExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
		x.Pattern = rewriteExpr(x.Pattern, fn)
	case *IsExpr:
		x.Expr = rewriteExpr(x.Expr, fn)
	case *ExistsExpr:
		rewriteSelect(x.Subquery, fn)
	case *SubqueryExpr:
		rewriteSelect(x.Select, fn)
	}
	return e
}
