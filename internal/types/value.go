package types

import "fmt"

// Value represents a single database value. Concrete types use native Go types:
//   Bool -> bool, Int32 -> int32, Int64 -> int64, Float64 -> float64, String -> string
type Value = interface{}

// ToInt64 converts a numeric value to int64.
func ToInt64(dt DataType, v Value) (int64, error) {
	switch dt {
	case TypeInt32:
		return int64(v.(int32)), nil
	case TypeInt64:
		return v.(int64), nil
	case TypeFloat64:
		return int64(v.(float64)), nil
	default:
		return 0, fmt.Errorf("cannot convert %s to int64", dt.Name())
	}
}

// ToFloat64 converts a numeric value to float64 for arithmetic.
func ToFloat64(dt DataType, v Value) (float64, error) {
	switch dt {
	case TypeInt32:
		return float64(v.(int32)), nil
	case TypeInt64:
		return float64(v.(int64)), nil
	case TypeFloat64:
		return v.(float64), nil
	default:
		return 0, fmt.Errorf("cannot convert %s to float64", dt.Name())
	}
}

// CompareValues compares two values of the same DataType.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func CompareValues(dt DataType, a, b Value) int {
	switch dt {
	case TypeBool:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case TypeInt32:
		return cmpOrdered(a.(int32), b.(int32))
	case TypeInt64:
		return cmpOrdered(a.(int64), b.(int64))
	case TypeFloat64:
		return cmpOrdered(a.(float64), b.(float64))
	case TypeString:
		return cmpOrdered(a.(string), b.(string))
	default:
		return 0
	}
}

type ordered interface {
	~int32 | ~int64 | ~float64 | ~string
}

func cmpOrdered[T ordered](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ValueToString converts a value to its string representation.
func ValueToString(dt DataType, v Value) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
