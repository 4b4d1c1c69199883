package sharing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newZeroSharers(t *testing.T) [Parties]*ZeroSharer {
	var keys [Parties][]byte
	for p := range keys {
		key, err := NewZeroKey()
		require.NoError(t, err)
		keys[p] = key
	}

	var res [Parties]*ZeroSharer
	for p := range res {
		z, err := NewZeroSharer(keys[p], keys[Prev(p)])
		require.NoError(t, err)
		res[p] = z
	}
	return res
}

func Test_zero_sharing_cancels(t *testing.T) {
	sharers := newZeroSharers(t)

	for round := 0; round < 3; round++ {
		var sum, xor [4]uint64
		var masks [Parties][]uint64
		for p, z := range sharers {
			a, err := z.Arithmetic(4)
			require.NoError(t, err)
			b, err := z.Binary(4)
			require.NoError(t, err)
			masks[p] = a
			for i := range sum {
				sum[i] += a[i]
				xor[i] ^= b[i]
			}
		}
		require.Equal(t, [4]uint64{}, sum)
		require.Equal(t, [4]uint64{}, xor)
		require.NotEqual(t, masks[0], masks[1])
	}
}

// the same namespace replays the same masks and a new one changes them
func Test_zero_sharing_rekey(t *testing.T) {
	sharers := newZeroSharers(t)
	z := sharers[0]

	require.NoError(t, z.Rekey([]byte("req-1")))
	first, err := z.Arithmetic(2)
	require.NoError(t, err)

	require.NoError(t, z.Rekey([]byte("req-1")))
	again, err := z.Arithmetic(2)
	require.NoError(t, err)
	require.Equal(t, first, again)

	require.NoError(t, z.Rekey([]byte("req-2")))
	other, err := z.Arithmetic(2)
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func Test_zero_sharer_bad_key(t *testing.T) {
	_, err := NewZeroSharer([]byte{1, 2}, make([]byte, KeySize))
	require.Error(t, err)
}
