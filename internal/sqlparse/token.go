// Package sqlparse provides the SQL lexer, AST, parser, and formatter that
// back the query guardrail.
//
// Only single SELECT statements are parsed in depth. Every other statement
// kind is classified from its leading keywords so the guardrail can name
// what it is rejecting, without carrying grammar for statements that are
// never allowed to execute.
package sqlparse

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character

	TOKEN_IDENT  // identifier
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'

	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_STAR      // *
	TOKEN_SLASH     // /
	TOKEN_MOD       // %
	TOKEN_DPIPE     // ||
	TOKEN_EQ        // =
	TOKEN_NE        // != or <>
	TOKEN_LT        // <
	TOKEN_GT        // >
	TOKEN_LE        // <=
	TOKEN_GE        // >=
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_DCOLON    // :: cast

	// TOKEN_ALL and below are SQL keywords (alphabetical).
	TOKEN_ALL
	TOKEN_ALTER
	TOKEN_AND
	TOKEN_AS
	TOKEN_ASC
	TOKEN_BEGIN
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CALL
	TOKEN_CASE
	TOKEN_CAST
	TOKEN_COMMIT
	TOKEN_COPY
	TOKEN_CREATE
	TOKEN_CROSS
	TOKEN_CURRENT
	TOKEN_DELETE
	TOKEN_DESC
	TOKEN_DESCRIBE
	TOKEN_DISTINCT
	TOKEN_DROP
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXCEPT
	TOKEN_EXECUTE
	TOKEN_EXISTS
	TOKEN_EXPLAIN
	TOKEN_EXTRACT
	TOKEN_FALSE
	TOKEN_FOLLOWING
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GRANT
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_ILIKE
	TOKEN_IN
	TOKEN_INNER
	TOKEN_INSERT
	TOKEN_INTERSECT
	TOKEN_INTO
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LEFT
	TOKEN_LIKE
	TOKEN_LIMIT
	TOKEN_MERGE
	TOKEN_NATURAL
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_NULLS
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_OVER
	TOKEN_PARTITION
	TOKEN_PRAGMA
	TOKEN_PRECEDING
	TOKEN_RANGE
	TOKEN_RECURSIVE
	TOKEN_REVOKE
	TOKEN_RIGHT
	TOKEN_ROLLBACK
	TOKEN_ROW
	TOKEN_ROWS
	TOKEN_SELECT
	TOKEN_SET
	TOKEN_SHOW
	TOKEN_THEN
	TOKEN_TRUE
	TOKEN_TRUNCATE
	TOKEN_UNBOUNDED
	TOKEN_UNION
	TOKEN_UPDATE
	TOKEN_USE
	TOKEN_USING
	TOKEN_VACUUM
	TOKEN_VALUES
	TOKEN_WHEN
	TOKEN_WHERE
	TOKEN_WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_STRING:  "STRING",

	TOKEN_PLUS:      "+",
	TOKEN_MINUS:     "-",
	TOKEN_STAR:      "*",
	TOKEN_SLASH:     "/",
	TOKEN_MOD:       "%",
	TOKEN_DPIPE:     "||",
	TOKEN_EQ:        "=",
	TOKEN_NE:        "!=",
	TOKEN_LT:        "<",
	TOKEN_GT:        ">",
	TOKEN_LE:        "<=",
	TOKEN_GE:        ">=",
	TOKEN_DOT:       ".",
	TOKEN_COMMA:     ",",
	TOKEN_SEMICOLON: ";",
	TOKEN_LPAREN:    "(",
	TOKEN_RPAREN:    ")",
	TOKEN_DCOLON:    "::",

	TOKEN_ALL:       "ALL",
	TOKEN_ALTER:     "ALTER",
	TOKEN_AND:       "AND",
	TOKEN_AS:        "AS",
	TOKEN_ASC:       "ASC",
	TOKEN_BEGIN:     "BEGIN",
	TOKEN_BETWEEN:   "BETWEEN",
	TOKEN_BY:        "BY",
	TOKEN_CALL:      "CALL",
	TOKEN_CASE:      "CASE",
	TOKEN_CAST:      "CAST",
	TOKEN_COMMIT:    "COMMIT",
	TOKEN_COPY:      "COPY",
	TOKEN_CREATE:    "CREATE",
	TOKEN_CROSS:     "CROSS",
	TOKEN_CURRENT:   "CURRENT",
	TOKEN_DELETE:    "DELETE",
	TOKEN_DESC:      "DESC",
	TOKEN_DESCRIBE:  "DESCRIBE",
	TOKEN_DISTINCT:  "DISTINCT",
	TOKEN_DROP:      "DROP",
	TOKEN_ELSE:      "ELSE",
	TOKEN_END:       "END",
	TOKEN_EXCEPT:    "EXCEPT",
	TOKEN_EXECUTE:   "EXECUTE",
	TOKEN_EXISTS:    "EXISTS",
	TOKEN_EXPLAIN:   "EXPLAIN",
	TOKEN_EXTRACT:   "EXTRACT",
	TOKEN_FALSE:     "FALSE",
	TOKEN_FOLLOWING: "FOLLOWING",
	TOKEN_FROM:      "FROM",
	TOKEN_FULL:      "FULL",
	TOKEN_GRANT:     "GRANT",
	TOKEN_GROUP:     "GROUP",
	TOKEN_HAVING:    "HAVING",
	TOKEN_ILIKE:     "ILIKE",
	TOKEN_IN:        "IN",
	TOKEN_INNER:     "INNER",
	TOKEN_INSERT:    "INSERT",
	TOKEN_INTERSECT: "INTERSECT",
	TOKEN_INTO:      "INTO",
	TOKEN_IS:        "IS",
	TOKEN_JOIN:      "JOIN",
	TOKEN_LEFT:      "LEFT",
	TOKEN_LIKE:      "LIKE",
	TOKEN_LIMIT:     "LIMIT",
	TOKEN_MERGE:     "MERGE",
	TOKEN_NATURAL:   "NATURAL",
	TOKEN_NOT:       "NOT",
	TOKEN_NULL:      "NULL",
	TOKEN_NULLS:     "NULLS",
	TOKEN_OFFSET:    "OFFSET",
	TOKEN_ON:        "ON",
	TOKEN_OR:        "OR",
	TOKEN_ORDER:     "ORDER",
	TOKEN_OUTER:     "OUTER",
	TOKEN_OVER:      "OVER",
	TOKEN_PARTITION: "PARTITION",
	TOKEN_PRAGMA:    "PRAGMA",
	TOKEN_PRECEDING: "PRECEDING",
	TOKEN_RANGE:     "RANGE",
	TOKEN_RECURSIVE: "RECURSIVE",
	TOKEN_REVOKE:    "REVOKE",
	TOKEN_RIGHT:     "RIGHT",
	TOKEN_ROLLBACK:  "ROLLBACK",
	TOKEN_ROW:       "ROW",
	TOKEN_ROWS:      "ROWS",
	TOKEN_SELECT:    "SELECT",
	TOKEN_SET:       "SET",
	TOKEN_SHOW:      "SHOW",
	TOKEN_THEN:      "THEN",
	TOKEN_TRUE:      "TRUE",
	TOKEN_TRUNCATE:  "TRUNCATE",
	TOKEN_UNBOUNDED: "UNBOUNDED",
	TOKEN_UNION:     "UNION",
	TOKEN_UPDATE:    "UPDATE",
	TOKEN_USE:       "USE",
	TOKEN_USING:     "USING",
	TOKEN_VACUUM:    "VACUUM",
	TOKEN_VALUES:    "VALUES",
	TOKEN_WHEN:      "WHEN",
	TOKEN_WHERE:     "WHERE",
	TOKEN_WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       TOKEN_ALL,
	"alter":     TOKEN_ALTER,
	"and":       TOKEN_AND,
	"as":        TOKEN_AS,
	"asc":       TOKEN_ASC,
	"begin":     TOKEN_BEGIN,
	"between":   TOKEN_BETWEEN,
	"by":        TOKEN_BY,
	"call":      TOKEN_CALL,
	"case":      TOKEN_CASE,
	"cast":      TOKEN_CAST,
	"commit":    TOKEN_COMMIT,
	"copy":      TOKEN_COPY,
	"create":    TOKEN_CREATE,
	"cross":     TOKEN_CROSS,
	"current":   TOKEN_CURRENT,
	"delete":    TOKEN_DELETE,
	"desc":      TOKEN_DESC,
	"describe":  TOKEN_DESCRIBE,
	"distinct":  TOKEN_DISTINCT,
	"drop":      TOKEN_DROP,
	"else":      TOKEN_ELSE,
	"end":       TOKEN_END,
	"except":    TOKEN_EXCEPT,
	"execute":   TOKEN_EXECUTE,
	"exists":    TOKEN_EXISTS,
	"explain":   TOKEN_EXPLAIN,
	"extract":   TOKEN_EXTRACT,
	"false":     TOKEN_FALSE,
	"following": TOKEN_FOLLOWING,
	"from":      TOKEN_FROM,
	"full":      TOKEN_FULL,
	"grant":     TOKEN_GRANT,
	"group":     TOKEN_GROUP,
	"having":    TOKEN_HAVING,
	"ilike":     TOKEN_ILIKE,
	"in":        TOKEN_IN,
	"inner":     TOKEN_INNER,
	"insert":    TOKEN_INSERT,
	"intersect": TOKEN_INTERSECT,
	"into":      TOKEN_INTO,
	"is":        TOKEN_IS,
	"join":      TOKEN_JOIN,
	"left":      TOKEN_LEFT,
	"like":      TOKEN_LIKE,
	"limit":     TOKEN_LIMIT,
	"merge":     TOKEN_MERGE,
	"natural":   TOKEN_NATURAL,
	"not":       TOKEN_NOT,
	"null":      TOKEN_NULL,
	"nulls":     TOKEN_NULLS,
	"offset":    TOKEN_OFFSET,
	"on":        TOKEN_ON,
	"or":        TOKEN_OR,
	"order":     TOKEN_ORDER,
	"outer":     TOKEN_OUTER,
	"over":      TOKEN_OVER,
	"partition": TOKEN_PARTITION,
	"pragma":    TOKEN_PRAGMA,
	"preceding": TOKEN_PRECEDING,
	"range":     TOKEN_RANGE,
	"recursive": TOKEN_RECURSIVE,
	"revoke":    TOKEN_REVOKE,
	"right":     TOKEN_RIGHT,
	"rollback":  TOKEN_ROLLBACK,
	"row":       TOKEN_ROW,
	"rows":      TOKEN_ROWS,
	"select":    TOKEN_SELECT,
	"set":       TOKEN_SET,
	"show":      TOKEN_SHOW,
	"then":      TOKEN_THEN,
	"true":      TOKEN_TRUE,
	"truncate":  TOKEN_TRUNCATE,
	"unbounded": TOKEN_UNBOUNDED,
	"union":     TOKEN_UNION,
	"update":    TOKEN_UPDATE,
	"use":       TOKEN_USE,
	"using":     TOKEN_USING,
	"vacuum":    TOKEN_VACUUM,
	"values":    TOKEN_VALUES,
	"when":      TOKEN_WHEN,
	"where":     TOKEN_WHERE,
	"with":      TOKEN_WITH,
}

// lookupKeyword returns the token type for the given lowercase identifier.
// Returns TOKEN_IDENT if it's not a keyword.
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Token represents a lexical token with its literal value.
type Token struct {
	Type    TokenType
	Literal string
}

// Precedence constants for operator precedence parsing (Pratt parser).
const (
	PrecedenceNone       = 0
	PrecedenceOr         = 1
	PrecedenceAnd        = 2
	PrecedenceNot        = 3
	PrecedenceComparison = 4 // =, <>, <, >, <=, >=, LIKE, ILIKE, IN, BETWEEN, IS
	PrecedenceAddition   = 5 // +, -, ||
	PrecedenceMultiply   = 6 // *, /, %
	PrecedenceUnary      = 7 // -, +, NOT (prefix)
	PrecedencePostfix    = 8 // ::
)
