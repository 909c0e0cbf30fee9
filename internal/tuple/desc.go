package tuple

import (
	"fmt"

	"github.com/harshithgowdakt/heapdb/internal/types"
)

// ColumnDef defines a single column.
type ColumnDef struct {
	Name     string
	DataType types.DataType
}

// Desc describes the row shape of a relation: ordered column
// definitions shared by every tuple stored in it.
type Desc struct {
	Columns []ColumnDef
}

// NewDesc creates a descriptor from column definitions.
func NewDesc(cols []ColumnDef) *Desc {
	return &Desc{Columns: cols}
}

// NumColumns returns the number of columns.
func (d *Desc) NumColumns() int { return len(d.Columns) }

// ColumnIndex returns the position of the named column, or -1.
func (d *Desc) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (d *Desc) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Equal reports whether two descriptors have the same shape.
func (d *Desc) Equal(other *Desc) bool {
	if len(d.Columns) != len(other.Columns) {
		return false
	}
	for i := range d.Columns {
		if d.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

func (d *Desc) String() string {
	s := "("
	for i, c := range d.Columns {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %s", c.Name, c.DataType.Name())
	}
	return s + ")"
}
