package sqlparse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMultipleStatements is returned by Parse when the input contains more
// than one statement.
var ErrMultipleStatements = errors.New("multiple statements are not allowed")

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	input  string // original input for raw extraction
	token  Token  // current token
	peek   Token  // lookahead token
	peek2  Token  // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{
		lexer: NewLexer(sql),
		input: sql,
	}
	// Initialize three-token lookahead
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the SQL and returns the top-level statement. A trailing
// semicolon is tolerated; a second statement is not.
func Parse(sql string) (Stmt, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty SQL")
	}

	p := NewParser(sql)
	stmt := p.parseTopLevel()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}

	// One optional trailing semicolon, then EOF.
	if p.token.Type == TOKEN_SEMICOLON {
		p.nextToken()
	}
	if p.token.Type != TOKEN_EOF {
		return nil, ErrMultipleStatements
	}

	return stmt, nil
}

// ParseExpr parses a standalone expression from SQL text. Used for metric
// definitions, which are expressions over declared columns.
func ParseExpr(sql string) (Expr, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := NewParser(sql)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if p.token.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected token after expression: %s", p.token.Literal)
	}

	return expr, nil
}

// nextToken advances the token stream.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// errorf records a parse error.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Errorf(format, args...))
}

// expect consumes the current token if it matches, or records an error.
func (p *Parser) expect(t TokenType) {
	if p.token.Type != t {
		p.errorf("expected %s, got %s (%q)", t, p.token.Type, p.token.Literal)
		return
	}
	p.nextToken()
}

// accept consumes the current token if it matches and reports whether it did.
func (p *Parser) accept(t TokenType) bool {
	if p.token.Type == t {
		p.nextToken()
		return true
	}
	return false
}

// parseTopLevel dispatches on the first token. SELECT (and WITH ... SELECT)
// is parsed in depth; everything else is classified and its body skipped.
func (p *Parser) parseTopLevel() Stmt {
	switch p.token.Type {
	case TOKEN_SELECT:
		return p.parseSelectStatement()
	case TOKEN_WITH:
		return p.parseWithStatement()
	case TOKEN_LPAREN:
		// Parenthesized SELECT, e.g. (SELECT ...) UNION ...
		return p.parseSelectStatement()

	case TOKEN_INSERT:
		return p.classifyStmt(KindInsert)
	case TOKEN_UPDATE:
		return p.classifyStmt(KindUpdate)
	case TOKEN_DELETE:
		return p.classifyStmt(KindDelete)
	case TOKEN_MERGE:
		return p.classifyStmt(KindMerge)
	case TOKEN_TRUNCATE:
		return p.classifyStmt(KindTruncate)
	case TOKEN_CREATE:
		return p.classifyStmt(KindCreate)
	case TOKEN_DROP:
		return p.classifyStmt(KindDrop)
	case TOKEN_ALTER:
		return p.classifyStmt(KindAlter)
	case TOKEN_GRANT:
		return p.classifyStmt(KindGrant)
	case TOKEN_REVOKE:
		return p.classifyStmt(KindRevoke)
	case TOKEN_BEGIN:
		return p.classifyStmt(KindBegin)
	case TOKEN_COMMIT:
		return p.classifyStmt(KindCommit)
	case TOKEN_ROLLBACK:
		return p.classifyStmt(KindRollback)
	case TOKEN_SET:
		return p.classifyStmt(KindSet)
	case TOKEN_CALL:
		return p.classifyStmt(KindCall)
	case TOKEN_COPY:
		return p.classifyStmt(KindCopy)
	case TOKEN_PRAGMA:
		return p.classifyStmt(KindPragma)
	case TOKEN_EXECUTE:
		return p.classifyStmt(KindExecute)
	case TOKEN_EXPLAIN:
		return p.classifyStmt(KindExplain)
	case TOKEN_DESCRIBE:
		return p.classifyStmt(KindDescribe)
	case TOKEN_SHOW:
		return p.classifyStmt(KindShow)
	case TOKEN_USE:
		return p.classifyStmt(KindUse)
	case TOKEN_VACUUM:
		return p.classifyStmt(KindVacuum)
	case TOKEN_VALUES:
		return p.classifyStmt(KindValues)

	default:
		p.errorf("unexpected token at start of statement: %q", p.token.Literal)
		return nil
	}
}

// classifyStmt records the statement kind and skips its body up to the next
// top-level semicolon or EOF. The body is never interpreted.
func (p *Parser) classifyStmt(kind StmtKind) Stmt {
	raw := p.input
	depth := 0
	for p.token.Type != TOKEN_EOF {
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_SEMICOLON:
			if depth <= 0 {
				return &OtherStmt{Kind: kind, Raw: raw}
			}
		}
		p.nextToken()
	}
	return &OtherStmt{Kind: kind, Raw: raw}
}

// parseWithStatement parses WITH [RECURSIVE] name [(cols)] AS (select), ... select.
func (p *Parser) parseWithStatement() Stmt {
	with := &WithClause{}
	p.expect(TOKEN_WITH)
	with.Recursive = p.accept(TOKEN_RECURSIVE)

	for {
		cte := &CTE{}
		if p.token.Type != TOKEN_IDENT {
			p.errorf("expected CTE name, got %q", p.token.Literal)
			return nil
		}
		cte.Name = p.token.Literal
		p.nextToken()

		if p.accept(TOKEN_LPAREN) {
			for {
				if p.token.Type != TOKEN_IDENT {
					p.errorf("expected CTE column name, got %q", p.token.Literal)
					return nil
				}
				cte.Columns = append(cte.Columns, p.token.Literal)
				p.nextToken()
				if !p.accept(TOKEN_COMMA) {
					break
				}
			}
			p.expect(TOKEN_RPAREN)
		}

		p.expect(TOKEN_AS)
		p.expect(TOKEN_LPAREN)
		inner := p.parseSelectStatement()
		sel, ok := inner.(*SelectStmt)
		if !ok {
			p.errorf("CTE body must be a SELECT")
			return nil
		}
		cte.Select = sel
		p.expect(TOKEN_RPAREN)

		with.CTEs = append(with.CTEs, cte)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}

	body := p.parseSelectStatement()
	sel, ok := body.(*SelectStmt)
	if !ok {
		p.errorf("WITH must be followed by a SELECT")
		return nil
	}
	sel.With = with
	return sel
}

// parseSelectStatement parses a SELECT body with optional set operations.
func (p *Parser) parseSelectStatement() Stmt {
	body := p.parseSelectBody()
	if body == nil {
		return nil
	}
	return &SelectStmt{Body: body}
}

// parseSelectBody parses one SELECT core plus chained set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	var core *SelectCore
	if p.token.Type == TOKEN_LPAREN {
		// Parenthesized operand of a set operation.
		p.nextToken()
		inner := p.parseSelectBody()
		p.expect(TOKEN_RPAREN)
		if inner == nil {
			return nil
		}
		core = inner.Left
		if inner.Op != SetOpNone {
			// Keep nested set operations intact by flattening into the chain.
			body := &SelectBody{Left: core, Op: inner.Op, All: inner.All, Right: inner.Right}
			return p.parseSetOpTail(body)
		}
	} else {
		core = p.parseSelectCore()
		if core == nil {
			return nil
		}
	}

	body := &SelectBody{Left: core}
	return p.parseSetOpTail(body)
}

// parseSetOpTail parses a UNION/INTERSECT/EXCEPT tail after a SELECT core.
// Chains nest to the right through SelectBody.Right.
func (p *Parser) parseSetOpTail(body *SelectBody) *SelectBody {
	var op SetOpType
	switch p.token.Type {
	case TOKEN_UNION:
		op = SetOpUnion
	case TOKEN_INTERSECT:
		op = SetOpIntersect
	case TOKEN_EXCEPT:
		op = SetOpExcept
	default:
		return body
	}
	p.nextToken()
	all := p.accept(TOKEN_ALL)
	p.accept(TOKEN_DISTINCT) // UNION DISTINCT is the default

	right := p.parseSelectBody()
	if right == nil || body.Left == nil {
		return nil
	}
	return &SelectBody{Left: body.Left, Op: op, All: all, Right: right}
}

// parseSelectCore parses SELECT ... [FROM ...] [WHERE ...] etc.
func (p *Parser) parseSelectCore() *SelectCore {
	core := &SelectCore{}
	p.expect(TOKEN_SELECT)
	if p.accept(TOKEN_DISTINCT) {
		core.Distinct = true
	} else {
		p.accept(TOKEN_ALL)
	}

	// Select list
	for {
		item := p.parseSelectItem()
		core.Columns = append(core.Columns, item)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}

	if p.accept(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}
	if p.accept(TOKEN_WHERE) {
		core.Where = p.parseExpression()
	}
	if p.token.Type == TOKEN_GROUP {
		p.nextToken()
		p.expect(TOKEN_BY)
		for {
			core.GroupBy = append(core.GroupBy, p.parseExpression())
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
	}
	if p.accept(TOKEN_HAVING) {
		core.Having = p.parseExpression()
	}
	if p.token.Type == TOKEN_ORDER {
		p.nextToken()
		p.expect(TOKEN_BY)
		core.OrderBy = p.parseOrderByList()
	}
	if p.accept(TOKEN_LIMIT) {
		core.Limit = p.parseExpression()
	}
	if p.accept(TOKEN_OFFSET) {
		core.Offset = p.parseExpression()
		p.accept(TOKEN_ROWS)
		p.accept(TOKEN_ROW)
	}
	// LIMIT may also follow OFFSET
	if core.Limit == nil && p.accept(TOKEN_LIMIT) {
		core.Limit = p.parseExpression()
	}

	return core
}

// parseSelectItem parses one item of the select list.
func (p *Parser) parseSelectItem() SelectItem {
	if p.token.Type == TOKEN_STAR {
		p.nextToken()
		return SelectItem{Star: true}
	}
	// t.* needs the third lookahead token to distinguish from t.col.
	if p.token.Type == TOKEN_IDENT && p.peek.Type == TOKEN_DOT && p.peek2.Type == TOKEN_STAR {
		qualifier := p.token.Literal
		p.nextToken() // qualifier
		p.nextToken() // dot
		p.nextToken() // star
		return SelectItem{TableStar: qualifier}
	}

	item := SelectItem{Expr: p.parseExpression()}
	if p.accept(TOKEN_AS) {
		item.Alias = p.parseAliasName()
	} else if p.token.Type == TOKEN_IDENT {
		item.Alias = p.token.Literal
		p.nextToken()
	}
	return item
}

// parseAliasName parses an alias identifier.
func (p *Parser) parseAliasName() string {
	if p.token.Type != TOKEN_IDENT {
		p.errorf("expected alias name, got %q", p.token.Literal)
		return ""
	}
	name := p.token.Literal
	p.nextToken()
	return name
}

// parseOrderByList parses a comma-separated ORDER BY list.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		item := OrderByItem{Expr: p.parseExpression()}
		if p.accept(TOKEN_ASC) {
			item.Desc = false
		} else if p.accept(TOKEN_DESC) {
			item.Desc = true
		}
		if p.accept(TOKEN_NULLS) {
			switch p.token.Type {
			case TOKEN_IDENT:
				switch strings.ToLower(p.token.Literal) {
				case "first":
					v := true
					item.NullsFirst = &v
				case "last":
					v := false
					item.NullsFirst = &v
				default:
					p.errorf("expected FIRST or LAST after NULLS, got %q", p.token.Literal)
				}
				p.nextToken()
			default:
				p.errorf("expected FIRST or LAST after NULLS, got %q", p.token.Literal)
			}
		}
		items = append(items, item)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// === FROM clause ===

// parseFromClause parses the FROM clause with joins.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{Source: p.parseTableRef()}

	for {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}
	return from
}

// parseJoin parses one join clause, or returns nil when the next token does
// not start a join.
func (p *Parser) parseJoin() *Join {
	join := &Join{}

	switch p.token.Type {
	case TOKEN_COMMA:
		p.nextToken()
		join.Type = JoinComma
		join.Right = p.parseTableRef()
		return join
	case TOKEN_CROSS:
		p.nextToken()
		p.expect(TOKEN_JOIN)
		join.Type = JoinCross
		join.Right = p.parseTableRef()
		return join
	case TOKEN_NATURAL:
		p.nextToken()
		join.Natural = true
		join.Type = p.parseJoinType()
		join.Right = p.parseTableRef()
		return join
	case TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_FULL, TOKEN_JOIN:
		join.Type = p.parseJoinType()
		join.Right = p.parseTableRef()
		if p.accept(TOKEN_ON) {
			join.Condition = p.parseExpression()
		} else if p.accept(TOKEN_USING) {
			p.expect(TOKEN_LPAREN)
			for {
				if p.token.Type != TOKEN_IDENT {
					p.errorf("expected column name in USING, got %q", p.token.Literal)
					return nil
				}
				join.Using = append(join.Using, p.token.Literal)
				p.nextToken()
				if !p.accept(TOKEN_COMMA) {
					break
				}
			}
			p.expect(TOKEN_RPAREN)
		}
		return join
	default:
		return nil
	}
}

// parseJoinType consumes join-type keywords up to and including JOIN.
func (p *Parser) parseJoinType() JoinType {
	jt := JoinInner
	switch p.token.Type {
	case TOKEN_INNER:
		p.nextToken()
	case TOKEN_LEFT:
		jt = JoinLeft
		p.nextToken()
		p.accept(TOKEN_OUTER)
	case TOKEN_RIGHT:
		jt = JoinRight
		p.nextToken()
		p.accept(TOKEN_OUTER)
	case TOKEN_FULL:
		jt = JoinFull
		p.nextToken()
		p.accept(TOKEN_OUTER)
	}
	p.expect(TOKEN_JOIN)
	return jt
}

// parseTableRef parses one FROM source: table name, subquery, or
// table-valued function.
func (p *Parser) parseTableRef() TableRef {
	if p.token.Type == TOKEN_LPAREN {
		p.nextToken()
		inner := p.parseSelectStatement()
		p.expect(TOKEN_RPAREN)
		sel, ok := inner.(*SelectStmt)
		if !ok {
			p.errorf("expected subquery in FROM")
			return nil
		}
		d := &DerivedTable{Select: sel}
		p.accept(TOKEN_AS)
		if p.token.Type == TOKEN_IDENT {
			d.Alias = p.token.Literal
			p.nextToken()
		}
		return d
	}

	if p.token.Type != TOKEN_IDENT {
		p.errorf("expected table name, got %q", p.token.Literal)
		return nil
	}

	// Table-valued function: ident immediately followed by (
	if p.peek.Type == TOKEN_LPAREN {
		name := strings.ToLower(p.token.Literal)
		p.nextToken()
		fc := p.parseFuncArgs(name)
		ft := &FuncTable{Func: fc}
		p.accept(TOKEN_AS)
		if p.token.Type == TOKEN_IDENT {
			ft.Alias = p.token.Literal
			p.nextToken()
		}
		return ft
	}

	parts := []string{p.token.Literal}
	p.nextToken()
	for p.accept(TOKEN_DOT) {
		if p.token.Type != TOKEN_IDENT {
			p.errorf("expected identifier after '.', got %q", p.token.Literal)
			return nil
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	t := &TableName{}
	switch len(parts) {
	case 1:
		t.Name = parts[0]
	case 2:
		t.Schema, t.Name = parts[0], parts[1]
	case 3:
		t.Catalog, t.Schema, t.Name = parts[0], parts[1], parts[2]
	default:
		p.errorf("table name has too many parts: %s", strings.Join(parts, "."))
		return nil
	}

	if p.accept(TOKEN_AS) {
		t.Alias = p.parseAliasName()
	} else if p.token.Type == TOKEN_IDENT {
		t.Alias = p.token.Literal
		p.nextToken()
	}
	return t
}
