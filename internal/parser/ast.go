package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Statement is the top-level AST node.
type Statement interface {
	statementNode()
}

// --- Statements ---

// CreateTableStmt represents CREATE TABLE.
type CreateTableStmt struct {
	TableName   string
	IfNotExists bool
	Columns     []ColumnDefNode
}

func (*CreateTableStmt) statementNode() {}

// CreateMaterializedViewStmt represents
// CREATE MATERIALIZED VIEW name AS SELECT ... [WITH NO DATA].
type CreateMaterializedViewStmt struct {
	ViewName    string
	IfNotExists bool
	Select      *SelectStmt
	WithNoData  bool
}

func (*CreateMaterializedViewStmt) statementNode() {}

// RefreshMatViewStmt represents
// REFRESH MATERIALIZED VIEW name [WITH NO DATA].
type RefreshMatViewStmt struct {
	ViewName string
	SkipData bool
}

func (*RefreshMatViewStmt) statementNode() {}

// CreateIndexStmt represents CREATE INDEX name ON table (column).
type CreateIndexStmt struct {
	IndexName string
	TableName string
	Column    string
}

func (*CreateIndexStmt) statementNode() {}

// ColumnDefNode defines a column in a CREATE TABLE.
type ColumnDefNode struct {
	Name     string
	TypeName string
}

// InsertStmt represents INSERT INTO ... VALUES ...
type InsertStmt struct {
	TableName string
	Columns   []string       // explicit column list, or nil for all
	Values    [][]Expression // list of row-value-lists
}

func (*InsertStmt) statementNode() {}

// SelectStmt represents SELECT.
type SelectStmt struct {
	Columns []SelectExpr
	From    string // table name
	Where   Expression
}

func (*SelectStmt) statementNode() {}

// SelectExpr represents a single item in the SELECT list.
type SelectExpr struct {
	Expr  Expression
	Alias string // AS alias, or empty
}

// DropTableStmt represents DROP TABLE / DROP MATERIALIZED VIEW.
type DropTableStmt struct {
	TableName string
	IfExists  bool
	MatView   bool
}

func (*DropTableStmt) statementNode() {}

// ShowTablesStmt represents SHOW TABLES.
type ShowTablesStmt struct{}

func (*ShowTablesStmt) statementNode() {}

// --- Expressions ---

// Expression is a node in an expression tree.
type Expression interface {
	exprNode()
}

// ColumnRef references a column by name.
type ColumnRef struct {
	Name string
}

func (*ColumnRef) exprNode() {}

// LiteralExpr is a literal value (int64, float64, string, or bool).
type LiteralExpr struct {
	Value interface{}
}

func (*LiteralExpr) exprNode() {}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Op    string // +, -, *, /, =, !=, <, >, <=, >=, AND, OR
	Left  Expression
	Right Expression
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is a unary operation.
type UnaryExpr struct {
	Op   string // NOT, -
	Expr Expression
}

func (*UnaryExpr) exprNode() {}

// StarExpr represents * in SELECT *.
type StarExpr struct{}

func (*StarExpr) exprNode() {}

// ExprName derives an output column name from an expression.
func ExprName(expr Expression) string {
	if c, ok := expr.(*ColumnRef); ok {
		return c.Name
	}
	return ExprToSQL(expr)
}

// ExprToSQL converts an Expression AST back to its SQL text representation.
func ExprToSQL(expr Expression) string {
	if expr == nil {
		return ""
	}
	switch e := expr.(type) {
	case *ColumnRef:
		return e.Name
	case *LiteralExpr:
		switch v := e.Value.(type) {
		case string:
			return "'" + strings.ReplaceAll(v, "'", "''") + "'"
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			if v {
				return "TRUE"
			}
			return "FALSE"
		default:
			return fmt.Sprintf("%v", v)
		}
	case *BinaryExpr:
		return ExprToSQL(e.Left) + " " + e.Op + " " + ExprToSQL(e.Right)
	case *UnaryExpr:
		return e.Op + " " + ExprToSQL(e.Expr)
	case *StarExpr:
		return "*"
	default:
		return "?"
	}
}
