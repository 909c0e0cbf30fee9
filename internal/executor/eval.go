package executor

import (
	"fmt"
	"strings"

	"github.com/harshithgowdakt/heapdb/internal/parser"
	"github.com/harshithgowdakt/heapdb/internal/rewrite"
	"github.com/harshithgowdakt/heapdb/internal/tuple"
	"github.com/harshithgowdakt/heapdb/internal/types"
)

// evalExpr evaluates an expression against one row.
func evalExpr(expr parser.Expression, desc *tuple.Desc, row []types.Value) (types.Value, error) {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		return e.Value, nil

	case *parser.ColumnRef:
		idx := desc.ColumnIndex(e.Name)
		if idx < 0 {
			return nil, fmt.Errorf("column %s does not exist", e.Name)
		}
		return row[idx], nil

	case *parser.UnaryExpr:
		val, err := evalExpr(e.Expr, desc, row)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "-":
			switch v := val.(type) {
			case int32:
				return -v, nil
			case int64:
				return -v, nil
			case float64:
				return -v, nil
			}
			return nil, fmt.Errorf("cannot negate %T", val)
		case "NOT":
			b, ok := val.(bool)
			if !ok {
				return nil, fmt.Errorf("argument of NOT must be boolean")
			}
			return !b, nil
		}
		return nil, fmt.Errorf("unknown unary operator %s", e.Op)

	case *parser.BinaryExpr:
		return evalBinary(e, desc, row)

	default:
		return nil, fmt.Errorf("cannot evaluate expression %T", expr)
	}
}

func evalBinary(e *parser.BinaryExpr, desc *tuple.Desc, row []types.Value) (types.Value, error) {
	left, err := evalExpr(e.Left, desc, row)
	if err != nil {
		return nil, err
	}

	// AND and OR short-circuit on the left operand.
	switch e.Op {
	case "AND", "OR":
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("argument of %s must be boolean", e.Op)
		}
		if e.Op == "AND" && !lb {
			return false, nil
		}
		if e.Op == "OR" && lb {
			return true, nil
		}
		right, err := evalExpr(e.Right, desc, row)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("argument of %s must be boolean", e.Op)
		}
		return rb, nil
	}

	right, err := evalExpr(e.Right, desc, row)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		cmp, err := compareValues(left, right)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "=":
			return cmp == 0, nil
		case "!=":
			return cmp != 0, nil
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		}

	case "+", "-", "*", "/":
		return evalArith(e.Op, left, right)
	}
	return nil, fmt.Errorf("unknown operator %s", e.Op)
}

// toInt reports whether v is integral, widening int32 to int64.
func toInt(v types.Value) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// toFloat widens any numeric value for arithmetic and comparison.
func toFloat(v types.Value) (float64, error) {
	switch n := v.(type) {
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}

// compareValues orders two values, promoting mixed numerics to float.
func compareValues(a, b types.Value) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	}

	af, err := toFloat(a)
	if err != nil {
		return 0, err
	}
	bf, err := toFloat(b)
	if err != nil {
		return 0, err
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func evalArith(op string, left, right types.Value) (types.Value, error) {
	// Integer operands stay integral, except division which always
	// widens to float.
	li, lInt := toInt(left)
	ri, rInt := toInt(right)
	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		}
	}
	lf, err := toFloat(left)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", op, err)
	}
	rf, err := toFloat(right)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", op, err)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

// inferType determines the result type of an expression over desc.
func inferType(expr parser.Expression, desc *tuple.Desc) (types.DataType, error) {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		switch e.Value.(type) {
		case bool:
			return types.TypeBool, nil
		case int64:
			return types.TypeInt64, nil
		case float64:
			return types.TypeFloat64, nil
		case string:
			return types.TypeString, nil
		}
		return 0, fmt.Errorf("cannot infer type of literal %v", e.Value)

	case *parser.ColumnRef:
		idx := desc.ColumnIndex(e.Name)
		if idx < 0 {
			return 0, fmt.Errorf("column %s does not exist", e.Name)
		}
		return desc.Columns[idx].DataType, nil

	case *parser.UnaryExpr:
		if e.Op == "NOT" {
			return types.TypeBool, nil
		}
		return inferType(e.Expr, desc)

	case *parser.BinaryExpr:
		switch e.Op {
		case "AND", "OR", "=", "!=", "<", "<=", ">", ">=":
			return types.TypeBool, nil
		}
		lt, err := inferType(e.Left, desc)
		if err != nil {
			return 0, err
		}
		rt, err := inferType(e.Right, desc)
		if err != nil {
			return 0, err
		}
		if lt == types.TypeFloat64 || rt == types.TypeFloat64 || e.Op == "/" {
			return types.TypeFloat64, nil
		}
		return types.TypeInt64, nil
	}
	return 0, fmt.Errorf("cannot infer type of %T", expr)
}

// outputDesc builds the row shape produced by a target list over the
// source relation's shape.
func outputDesc(targets []rewrite.TargetEntry, src *tuple.Desc) (*tuple.Desc, error) {
	var cols []tuple.ColumnDef
	for _, te := range targets {
		if _, ok := te.Expr.(*parser.StarExpr); ok {
			cols = append(cols, src.Columns...)
			continue
		}
		dt, err := inferType(te.Expr, src)
		if err != nil {
			return nil, err
		}
		name := te.Name
		if name == "" {
			name = columnNameFor(te.Expr)
		}
		cols = append(cols, tuple.ColumnDef{Name: name, DataType: dt})
	}
	return tuple.NewDesc(cols), nil
}

func columnNameFor(expr parser.Expression) string {
	if c, ok := expr.(*parser.ColumnRef); ok {
		return c.Name
	}
	return strings.ToLower(parser.ExprName(expr))
}
