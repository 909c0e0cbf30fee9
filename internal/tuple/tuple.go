package tuple

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harshithgowdakt/heapdb/internal/types"
)

// Infomask bits stored in the tuple header.
const (
	// FlagFrozen marks a tuple visible to every past and future
	// transaction. Set only by bulk loads into brand-new storage.
	FlagFrozen uint16 = 1 << 0
)

// headerSize is xmin (4) + cmin (4) + infomask (2).
const headerSize = 10

// Tuple is a single row: visibility header plus one value per column.
// Values may alias buffers owned by an executor; Materialize produces a
// self-contained copy safe to keep past the producer's next step.
type Tuple struct {
	Xmin     types.Xid
	Cmin     types.Cid
	Infomask uint16
	Values   []types.Value
}

// NewTuple creates a tuple over the given values without copying them.
func NewTuple(values []types.Value) *Tuple {
	return &Tuple{Values: values}
}

// Frozen reports whether the frozen infomask bit is set.
func (t *Tuple) Frozen() bool { return t.Infomask&FlagFrozen != 0 }

// Materialize returns a self-contained copy of the tuple.
func (t *Tuple) Materialize() *Tuple {
	vals := make([]types.Value, len(t.Values))
	copy(vals, t.Values)
	return &Tuple{
		Xmin:     t.Xmin,
		Cmin:     t.Cmin,
		Infomask: t.Infomask,
		Values:   vals,
	}
}

// Encode serializes the tuple (header plus values) for page storage.
func (t *Tuple) Encode(desc *Desc) ([]byte, error) {
	if len(t.Values) != desc.NumColumns() {
		return nil, fmt.Errorf("tuple has %d values, descriptor has %d columns",
			len(t.Values), desc.NumColumns())
	}

	buf := make([]byte, headerSize, headerSize+16*len(t.Values))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.Xmin))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(t.Cmin))
	binary.LittleEndian.PutUint16(buf[8:10], t.Infomask)

	for i, col := range desc.Columns {
		v := t.Values[i]
		switch col.DataType {
		case types.TypeBool:
			b := byte(0)
			if v.(bool) {
				b = 1
			}
			buf = append(buf, b)
		case types.TypeInt32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v.(int32)))
		case types.TypeInt64:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.(int64)))
		case types.TypeFloat64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.(float64)))
		case types.TypeString:
			s := v.(string)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		default:
			return nil, fmt.Errorf("unsupported data type %s", col.DataType.Name())
		}
	}
	return buf, nil
}

// Decode deserializes a tuple previously produced by Encode.
func Decode(data []byte, desc *Desc) (*Tuple, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("tuple data too short: %d bytes", len(data))
	}
	t := &Tuple{
		Xmin:     types.Xid(binary.LittleEndian.Uint32(data[0:4])),
		Cmin:     types.Cid(binary.LittleEndian.Uint32(data[4:8])),
		Infomask: binary.LittleEndian.Uint16(data[8:10]),
		Values:   make([]types.Value, desc.NumColumns()),
	}

	off := headerSize
	for i, col := range desc.Columns {
		switch col.DataType {
		case types.TypeBool:
			if off+1 > len(data) {
				return nil, truncErr(col.Name)
			}
			t.Values[i] = data[off] != 0
			off++
		case types.TypeInt32:
			if off+4 > len(data) {
				return nil, truncErr(col.Name)
			}
			t.Values[i] = int32(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		case types.TypeInt64:
			if off+8 > len(data) {
				return nil, truncErr(col.Name)
			}
			t.Values[i] = int64(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		case types.TypeFloat64:
			if off+8 > len(data) {
				return nil, truncErr(col.Name)
			}
			t.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		case types.TypeString:
			if off+4 > len(data) {
				return nil, truncErr(col.Name)
			}
			n := int(binary.LittleEndian.Uint32(data[off:]))
			off += 4
			if off+n > len(data) {
				return nil, truncErr(col.Name)
			}
			t.Values[i] = string(data[off : off+n])
			off += n
		default:
			return nil, fmt.Errorf("unsupported data type %s", col.DataType.Name())
		}
	}
	return t, nil
}

func truncErr(col string) error {
	return fmt.Errorf("tuple data truncated at column %s", col)
}
