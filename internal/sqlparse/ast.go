package sqlparse

// Node is implemented by every AST node.
type Node interface {
	node()
}

// Stmt is a top-level statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// TableRef is a FROM-clause source.
type TableRef interface {
	Node
	tableRefNode()
}

// === Statements ===

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) node()     {}
func (*SelectStmt) stmtNode() {}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	Name    string
	Columns []string
	Select  *SelectStmt
}

// SelectBody represents the body of a SELECT with possible set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType   // UNION, INTERSECT, EXCEPT, or none
	All   bool        // UNION ALL
	Right *SelectBody // for chained set operations
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpNone and friends classify set operations.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectCore represents a single SELECT clause with all optional clauses.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string // AS alias
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON clause
	Using     []string // USING (col1, col2)
}

// JoinType represents the type of join.
type JoinType string

// JoinInner and friends classify SQL JOIN types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// OrderByItem represents an item in an ORDER BY clause.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil = default, true = NULLS FIRST, false = NULLS LAST
}

// StmtKind classifies statements that are recognized but never parsed in
// depth: the guardrail rejects all of them.
type StmtKind int

// KindInsert and friends classify non-SELECT statement kinds.
const (
	KindInsert StmtKind = iota
	KindUpdate
	KindDelete
	KindMerge
	KindTruncate
	KindCreate
	KindDrop
	KindAlter
	KindGrant
	KindRevoke
	KindBegin
	KindCommit
	KindRollback
	KindSet
	KindCall
	KindCopy
	KindPragma
	KindExecute
	KindExplain
	KindDescribe
	KindShow
	KindUse
	KindVacuum
	KindValues
	KindOther
)

// String returns the statement kind keyword for diagnostics.
func (k StmtKind) String() string {
	if name, ok := stmtKindNames[k]; ok {
		return name
	}
	return "OTHER"
}

var stmtKindNames = map[StmtKind]string{
	KindInsert:   "INSERT",
	KindUpdate:   "UPDATE",
	KindDelete:   "DELETE",
	KindMerge:    "MERGE",
	KindTruncate: "TRUNCATE",
	KindCreate:   "CREATE",
	KindDrop:     "DROP",
	KindAlter:    "ALTER",
	KindGrant:    "GRANT",
	KindRevoke:   "REVOKE",
	KindBegin:    "BEGIN",
	KindCommit:   "COMMIT",
	KindRollback: "ROLLBACK",
	KindSet:      "SET",
	KindCall:     "CALL",
	KindCopy:     "COPY",
	KindPragma:   "PRAGMA",
	KindExecute:  "EXECUTE",
	KindExplain:  "EXPLAIN",
	KindDescribe: "DESCRIBE",
	KindShow:     "SHOW",
	KindUse:      "USE",
	KindVacuum:   "VACUUM",
	KindValues:   "VALUES",
	KindOther:    "OTHER",
}

// OtherStmt is any recognized non-SELECT statement. Classification only;
// the body is not parsed.
type OtherStmt struct {
	Kind StmtKind
	Raw  string
}

func (*OtherStmt) node()     {}
func (*OtherStmt) stmtNode() {}

// === Table references ===

// TableName represents a table reference, up to catalog.schema.name.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// Qualified returns the dotted name without the alias.
func (t *TableName) Qualified() string {
	switch {
	case t.Catalog != "":
		return t.Catalog + "." + t.Schema + "." + t.Name
	case t.Schema != "":
		return t.Schema + "." + t.Name
	default:
		return t.Name
	}
}

// DerivedTable represents a subquery in a FROM clause.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// FuncTable represents a table-valued function in FROM (e.g. read_files()).
type FuncTable struct {
	Func  *FuncCall
	Alias string
}

func (*FuncTable) node()         {}
func (*FuncTable) tableRefNode() {}

// === Expressions ===

// ColumnRef represents a column reference, optionally qualified.
type ColumnRef struct {
	Table  string // optional table/alias qualifier (may itself be dotted)
	Column string
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralNumber and friends classify literal values.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal represents a literal value (number, string, bool, null).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// BinaryExpr represents a binary expression (left op right).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x, +x).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Name     string // function name, stored lowercase
	Distinct bool   // COUNT(DISTINCT ...)
	Star     bool   // COUNT(*)
	Args     []Expr
	Window   *WindowSpec // OVER clause
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// WindowSpec represents an OVER clause.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameType distinguishes ROWS from RANGE frames.
type FrameType int

// FrameRows and FrameRange classify window frame types.
const (
	FrameRows FrameType = iota
	FrameRange
)

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  FrameType
	Start *FrameBound
	End   *FrameBound // nil for single-bound frames
}

// FrameBoundType classifies window frame bounds.
type FrameBoundType int

// BoundUnboundedPreceding and friends classify frame bounds.
const (
	BoundUnboundedPreceding FrameBoundType = iota
	BoundUnboundedFollowing
	BoundCurrentRow
	BoundPreceding
	BoundFollowing
)

// FrameBound is one bound of a window frame.
type FrameBound struct {
	Type  FrameBoundType
	Value Expr // for n PRECEDING / n FOLLOWING
}

// CaseExpr represents CASE [expr] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []CaseWhen
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// CaseWhen is one WHEN/THEN arm of a CASE expression.
type CaseWhen struct {
	When Expr
	Then Expr
}

// CastExpr represents CAST(expr AS type) or expr::type.
type CastExpr struct {
	Expr Expr
	Type string
}

func (*CastExpr) node()     {}
func (*CastExpr) exprNode() {}

// InExpr represents expr [NOT] IN (list) or expr [NOT] IN (subquery).
type InExpr struct {
	Expr     Expr
	Not      bool
	List     []Expr
	Subquery *SelectStmt
}

func (*InExpr) node()     {}
func (*InExpr) exprNode() {}

// BetweenExpr represents expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) node()     {}
func (*BetweenExpr) exprNode() {}

// LikeExpr represents expr [NOT] LIKE/ILIKE pattern.
type LikeExpr struct {
	Expr        Expr
	Not         bool
	Insensitive bool // ILIKE
	Pattern     Expr
}

func (*LikeExpr) node()     {}
func (*LikeExpr) exprNode() {}

// IsExpr represents expr IS [NOT] NULL/TRUE/FALSE.
type IsExpr struct {
	Expr Expr
	Not  bool
	What TokenType // TOKEN_NULL, TOKEN_TRUE, TOKEN_FALSE
}

func (*IsExpr) node()     {}
func (*IsExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not      bool
	Subquery *SelectStmt
}

func (*ExistsExpr) node()     {}
func (*ExistsExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) node()     {}
func (*SubqueryExpr) exprNode() {}
