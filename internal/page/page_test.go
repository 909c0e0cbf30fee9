package page

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndReadItems(t *testing.T) {
	pg := New()
	pg.Init()
	require.True(t, pg.IsInitialized())
	require.Equal(t, 0, pg.NumItems())

	slot, err := pg.AddItem([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 0, slot)

	slot, err = pg.AddItem([]byte("world!"))
	require.NoError(t, err)
	require.Equal(t, 1, slot)
	require.Equal(t, 2, pg.NumItems())

	item, err := pg.Item(0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), item)
	item, err = pg.Item(1)
	require.NoError(t, err)
	require.Equal(t, []byte("world!"), item)

	_, err = pg.Item(2)
	require.Error(t, err)
}

func TestFreeSpaceShrinks(t *testing.T) {
	pg := New()
	pg.Init()

	before := pg.FreeSpace()
	_, err := pg.AddItem(make([]byte, 100))
	require.NoError(t, err)
	after := pg.FreeSpace()
	require.Less(t, after, before)

	// Filling the page eventually fails rather than overflowing.
	for {
		if _, err := pg.AddItem(make([]byte, 500)); err != nil {
			break
		}
	}
	require.Less(t, pg.FreeSpace(), 500)
}

func TestChecksum(t *testing.T) {
	pg := New()
	pg.Init()
	_, err := pg.AddItem([]byte("payload"))
	require.NoError(t, err)

	pg.SetChecksum(3)
	require.True(t, pg.VerifyChecksum(3))

	// The block number is part of the checksum input.
	require.False(t, pg.VerifyChecksum(4))

	// Any corruption is detected.
	pg[HeaderSize+1] ^= 0xff
	require.False(t, pg.VerifyChecksum(3))
}

func TestEmptyInitializedPageChecksums(t *testing.T) {
	pg := New()
	pg.Init()
	pg.SetChecksum(0)
	require.True(t, pg.VerifyChecksum(0))
	require.Equal(t, 0, pg.NumItems())
}
