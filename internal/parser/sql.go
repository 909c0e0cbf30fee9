package parser

import "strings"

// SelectToSQL converts a SelectStmt AST back into SQL text. The result
// is stored in view rules so the defining query survives restarts.
func SelectToSQL(stmt *SelectStmt) string {
	if stmt == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, se := range stmt.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ExprToSQL(se.Expr))
		if se.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(se.Alias)
		}
	}

	if stmt.From != "" {
		sb.WriteString(" FROM ")
		sb.WriteString(stmt.From)
	}

	if stmt.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(ExprToSQL(stmt.Where))
	}

	return sb.String()
}
