package tuple

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/types"
)

func testDesc() *Desc {
	return NewDesc([]ColumnDef{
		{Name: "id", DataType: types.TypeInt64},
		{Name: "name", DataType: types.TypeString},
		{Name: "total", DataType: types.TypeFloat64},
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	desc := testDesc()
	in := NewTuple([]types.Value{int64(42), "acme", 123.5})
	in.Xmin = 7
	in.Cmin = 2

	data, err := in.Encode(desc)
	require.NoError(t, err)

	out, err := Decode(data, desc)
	require.NoError(t, err)
	require.Equal(t, types.Xid(7), out.Xmin)
	require.Equal(t, types.Cid(2), out.Cmin)
	require.False(t, out.Frozen())
	require.Equal(t, in.Values, out.Values)
}

func TestFrozenFlagSurvivesStorage(t *testing.T) {
	desc := testDesc()
	in := NewTuple([]types.Value{int64(1), "x", 0.0})
	in.Xmin = types.FrozenXid
	in.Infomask |= FlagFrozen

	data, err := in.Encode(desc)
	require.NoError(t, err)
	out, err := Decode(data, desc)
	require.NoError(t, err)
	require.True(t, out.Frozen())
	require.Equal(t, types.FrozenXid, out.Xmin)
}

func TestEncodeRejectsWrongArity(t *testing.T) {
	desc := testDesc()
	short := NewTuple([]types.Value{int64(1)})
	_, err := short.Encode(desc)
	require.Error(t, err)
}

func TestMaterializeDetachesValues(t *testing.T) {
	vals := []types.Value{int64(1), "a", 2.0}
	in := NewTuple(vals)
	out := in.Materialize()
	vals[0] = int64(99)
	require.Equal(t, int64(1), out.Values[0])
}
