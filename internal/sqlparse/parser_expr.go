package sqlparse

import "strings"

// parseExpression parses a full expression (lowest precedence entry point).
func (p *Parser) parseExpression() Expr {
	return p.parseBinary(PrecedenceNone)
}

// precedenceOf returns the binding power of the current token as an infix
// operator, or PrecedenceNone when it is not one.
func (p *Parser) precedenceOf(t TokenType) int {
	switch t {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_LIKE, TOKEN_ILIKE, TOKEN_IN, TOKEN_BETWEEN, TOKEN_IS, TOKEN_NOT:
		return PrecedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return PrecedenceMultiply
	case TOKEN_DCOLON:
		return PrecedencePostfix
	default:
		return PrecedenceNone
	}
}

// parseBinary is the Pratt loop: parse a unary operand, then fold infix
// operators of higher binding power than minPrec.
func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()

	for {
		prec := p.precedenceOf(p.token.Type)
		if prec == PrecedenceNone || prec <= minPrec {
			return left
		}

		switch p.token.Type {
		case TOKEN_DCOLON:
			p.nextToken()
			left = &CastExpr{Expr: left, Type: p.parseTypeName()}

		case TOKEN_IS:
			p.nextToken()
			not := p.accept(TOKEN_NOT)
			switch p.token.Type {
			case TOKEN_NULL, TOKEN_TRUE, TOKEN_FALSE:
				left = &IsExpr{Expr: left, Not: not, What: p.token.Type}
				p.nextToken()
			default:
				p.errorf("expected NULL, TRUE, or FALSE after IS, got %q", p.token.Literal)
				return left
			}

		case TOKEN_NOT:
			// a NOT IN / NOT LIKE / NOT BETWEEN
			switch p.peek.Type {
			case TOKEN_IN:
				p.nextToken()
				left = p.parseInTail(left, true)
			case TOKEN_LIKE, TOKEN_ILIKE:
				p.nextToken()
				left = p.parseLikeTail(left, true)
			case TOKEN_BETWEEN:
				p.nextToken()
				left = p.parseBetweenTail(left, true)
			default:
				p.errorf("unexpected NOT after expression")
				return left
			}

		case TOKEN_IN:
			left = p.parseInTail(left, false)

		case TOKEN_LIKE, TOKEN_ILIKE:
			left = p.parseLikeTail(left, false)

		case TOKEN_BETWEEN:
			left = p.parseBetweenTail(left, false)

		default:
			op := p.token.Type
			p.nextToken()
			right := p.parseBinary(prec)
			left = &BinaryExpr{Left: left, Op: op, Right: right}
		}
	}
}

// parseInTail parses IN (list) or IN (subquery) after the left operand.
func (p *Parser) parseInTail(left Expr, not bool) Expr {
	p.expect(TOKEN_IN)
	p.expect(TOKEN_LPAREN)

	in := &InExpr{Expr: left, Not: not}
	if p.token.Type == TOKEN_SELECT || p.token.Type == TOKEN_WITH {
		stmt := p.parseTopLevel()
		if sel, ok := stmt.(*SelectStmt); ok {
			in.Subquery = sel
		} else {
			p.errorf("expected subquery in IN")
		}
	} else {
		for {
			in.List = append(in.List, p.parseExpression())
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
	}
	p.expect(TOKEN_RPAREN)
	return in
}

// parseLikeTail parses LIKE/ILIKE pattern after the left operand.
func (p *Parser) parseLikeTail(left Expr, not bool) Expr {
	insensitive := p.token.Type == TOKEN_ILIKE
	p.nextToken()
	pattern := p.parseBinary(PrecedenceComparison)
	return &LikeExpr{Expr: left, Not: not, Insensitive: insensitive, Pattern: pattern}
}

// parseBetweenTail parses BETWEEN low AND high after the left operand.
func (p *Parser) parseBetweenTail(left Expr, not bool) Expr {
	p.expect(TOKEN_BETWEEN)
	low := p.parseBinary(PrecedenceComparison)
	p.expect(TOKEN_AND)
	high := p.parseBinary(PrecedenceComparison)
	return &BetweenExpr{Expr: left, Not: not, Low: low, High: high}
}

// parseUnary parses prefix operators and falls through to primary.
func (p *Parser) parseUnary() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		if p.peek.Type == TOKEN_EXISTS {
			p.nextToken()
			return p.parseExists(true)
		}
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parseBinary(PrecedenceNot)}
	case TOKEN_MINUS:
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_MINUS, Expr: p.parseBinary(PrecedenceUnary)}
	case TOKEN_PLUS:
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_PLUS, Expr: p.parseBinary(PrecedenceUnary)}
	case TOKEN_EXISTS:
		return p.parseExists(false)
	default:
		return p.parsePrimary()
	}
}

// parseExists parses [NOT] EXISTS (subquery).
func (p *Parser) parseExists(not bool) Expr {
	p.expect(TOKEN_EXISTS)
	p.expect(TOKEN_LPAREN)
	stmt := p.parseTopLevel()
	p.expect(TOKEN_RPAREN)
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		p.errorf("expected subquery after EXISTS")
		return nil
	}
	return &ExistsExpr{Not: not, Subquery: sel}
}

// parsePrimary parses literals, column references, function calls, CASE,
// CAST, EXTRACT, parenthesized expressions, and scalar subqueries.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "TRUE"}
	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "FALSE"}
	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case TOKEN_STAR:
		// Bare * only appears inside aggregate calls; parseFuncArgs handles
		// it there. Anywhere else it's malformed.
		p.errorf("unexpected '*'")
		p.nextToken()
		return nil
	case TOKEN_CASE:
		return p.parseCase()
	case TOKEN_CAST:
		return p.parseCast()
	case TOKEN_EXTRACT:
		return p.parseExtract()
	case TOKEN_CURRENT:
		// CURRENT ROW appears only in frames; bare CURRENT is malformed.
		p.errorf("unexpected CURRENT")
		p.nextToken()
		return nil
	case TOKEN_LPAREN:
		p.nextToken()
		if p.token.Type == TOKEN_SELECT || p.token.Type == TOKEN_WITH {
			stmt := p.parseTopLevel()
			p.expect(TOKEN_RPAREN)
			sel, ok := stmt.(*SelectStmt)
			if !ok {
				p.errorf("expected subquery")
				return nil
			}
			return &SubqueryExpr{Select: sel}
		}
		inner := p.parseExpression()
		p.expect(TOKEN_RPAREN)
		return &ParenExpr{Expr: inner}
	case TOKEN_IDENT:
		return p.parseIdentExpr()
	default:
		p.errorf("unexpected token %q in expression", p.token.Literal)
		p.nextToken()
		return nil
	}
}

// parseIdentExpr parses a column reference or a function call starting at an
// identifier.
func (p *Parser) parseIdentExpr() Expr {
	// Function call: ident immediately followed by (
	if p.peek.Type == TOKEN_LPAREN {
		name := strings.ToLower(p.token.Literal)
		p.nextToken()
		return p.parseFuncArgs(name)
	}

	parts := []string{p.token.Literal}
	p.nextToken()
	for p.token.Type == TOKEN_DOT && p.peek.Type == TOKEN_IDENT {
		p.nextToken()
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	ref := &ColumnRef{Column: parts[len(parts)-1]}
	if len(parts) > 1 {
		ref.Table = strings.Join(parts[:len(parts)-1], ".")
	}
	return ref
}

// parseFuncArgs parses the argument list (and optional OVER clause) of a
// function call. The caller has consumed the name; current token is '('.
func (p *Parser) parseFuncArgs(name string) *FuncCall {
	fc := &FuncCall{Name: name}
	p.expect(TOKEN_LPAREN)

	if p.token.Type == TOKEN_STAR {
		fc.Star = true
		p.nextToken()
	} else if p.token.Type != TOKEN_RPAREN {
		fc.Distinct = p.accept(TOKEN_DISTINCT)
		for {
			fc.Args = append(fc.Args, p.parseExpression())
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
	}
	p.expect(TOKEN_RPAREN)

	if p.accept(TOKEN_OVER) {
		fc.Window = p.parseWindowSpec()
	}
	return fc
}

// parseWindowSpec parses (PARTITION BY ... ORDER BY ... [frame]).
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}
	p.expect(TOKEN_LPAREN)

	if p.token.Type == TOKEN_PARTITION {
		p.nextToken()
		p.expect(TOKEN_BY)
		for {
			spec.PartitionBy = append(spec.PartitionBy, p.parseExpression())
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
	}
	if p.token.Type == TOKEN_ORDER {
		p.nextToken()
		p.expect(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}
	if p.token.Type == TOKEN_ROWS || p.token.Type == TOKEN_RANGE {
		spec.Frame = p.parseFrameSpec()
	}

	p.expect(TOKEN_RPAREN)
	return spec
}

// parseFrameSpec parses ROWS/RANGE [BETWEEN bound AND bound | bound].
func (p *Parser) parseFrameSpec() *FrameSpec {
	frame := &FrameSpec{}
	if p.token.Type == TOKEN_RANGE {
		frame.Type = FrameRange
	}
	p.nextToken()

	if p.accept(TOKEN_BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(TOKEN_AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}
	return frame
}

// parseFrameBound parses one window frame bound.
func (p *Parser) parseFrameBound() *FrameBound {
	switch p.token.Type {
	case TOKEN_UNBOUNDED:
		p.nextToken()
		switch p.token.Type {
		case TOKEN_PRECEDING:
			p.nextToken()
			return &FrameBound{Type: BoundUnboundedPreceding}
		case TOKEN_FOLLOWING:
			p.nextToken()
			return &FrameBound{Type: BoundUnboundedFollowing}
		default:
			p.errorf("expected PRECEDING or FOLLOWING after UNBOUNDED, got %q", p.token.Literal)
			return nil
		}
	case TOKEN_CURRENT:
		p.nextToken()
		p.expect(TOKEN_ROW)
		return &FrameBound{Type: BoundCurrentRow}
	default:
		value := p.parseExpression()
		switch p.token.Type {
		case TOKEN_PRECEDING:
			p.nextToken()
			return &FrameBound{Type: BoundPreceding, Value: value}
		case TOKEN_FOLLOWING:
			p.nextToken()
			return &FrameBound{Type: BoundFollowing, Value: value}
		default:
			p.errorf("expected PRECEDING or FOLLOWING in frame bound, got %q", p.token.Literal)
			return nil
		}
	}
}

// parseCase parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCase() Expr {
	p.expect(TOKEN_CASE)
	c := &CaseExpr{}

	if p.token.Type != TOKEN_WHEN {
		c.Operand = p.parseExpression()
	}
	for p.accept(TOKEN_WHEN) {
		when := p.parseExpression()
		p.expect(TOKEN_THEN)
		then := p.parseExpression()
		c.Whens = append(c.Whens, CaseWhen{When: when, Then: then})
	}
	if len(c.Whens) == 0 {
		p.errorf("CASE requires at least one WHEN arm")
	}
	if p.accept(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(TOKEN_END)
	return c
}

// parseCast parses CAST(expr AS type).
func (p *Parser) parseCast() Expr {
	p.expect(TOKEN_CAST)
	p.expect(TOKEN_LPAREN)
	expr := p.parseExpression()
	p.expect(TOKEN_AS)
	typ := p.parseTypeName()
	p.expect(TOKEN_RPAREN)
	return &CastExpr{Expr: expr, Type: typ}
}

// parseExtract parses EXTRACT(field FROM expr) into a two-argument call.
func (p *Parser) parseExtract() Expr {
	p.expect(TOKEN_EXTRACT)
	p.expect(TOKEN_LPAREN)
	if p.token.Type != TOKEN_IDENT {
		p.errorf("expected date part in EXTRACT, got %q", p.token.Literal)
		return nil
	}
	field := &Literal{Type: LiteralString, Value: strings.ToLower(p.token.Literal)}
	p.nextToken()
	p.expect(TOKEN_FROM)
	from := p.parseExpression()
	p.expect(TOKEN_RPAREN)
	return &FuncCall{Name: "extract", Args: []Expr{field, from}}
}

// parseTypeName parses a type name with optional precision arguments,
// e.g. VARCHAR, DECIMAL(10, 2).
func (p *Parser) parseTypeName() string {
	if p.token.Type != TOKEN_IDENT {
		p.errorf("expected type name, got %q", p.token.Literal)
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(p.token.Literal))
	p.nextToken()

	// Multi-word types: DOUBLE PRECISION, TIMESTAMP WITHOUT TIME ZONE.
	// Restricted to known leading words so a following alias is not eaten.
	head := strings.ToUpper(sb.String())
	if (head == "DOUBLE" || head == "CHARACTER") && p.token.Type == TOKEN_IDENT {
		sb.WriteByte(' ')
		sb.WriteString(strings.ToUpper(p.token.Literal))
		p.nextToken()
	}

	if p.token.Type == TOKEN_LPAREN {
		sb.WriteByte('(')
		p.nextToken()
		for p.token.Type == TOKEN_NUMBER {
			sb.WriteString(p.token.Literal)
			p.nextToken()
			if p.accept(TOKEN_COMMA) {
				sb.WriteString(", ")
			}
		}
		p.expect(TOKEN_RPAREN)
		sb.WriteByte(')')
	}
	return sb.String()
}
