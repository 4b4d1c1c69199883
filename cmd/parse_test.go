package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/peer"
)

func Test_CMD_Parse_Columns(t *testing.T) {
	columns, err := parseColumns("1, 2.5,-3; 4;")
	require.NoError(t, err)
	require.Equal(t, [][]float64{{1, 2.5, -3}, {4}, {}}, columns)

	_, err = parseColumns("1;x")
	require.ErrorIs(t, err, peer.ErrInvalidInput)

	counts, err := parseCounts("100,50;3")
	require.NoError(t, err)
	require.Equal(t, [][]int64{{100, 50}, {3}}, counts)

	_, err = parseCounts("1.5")
	require.ErrorIs(t, err, peer.ErrInvalidInput)
}

func Test_CMD_Print_Result(t *testing.T) {
	buf := new(bytes.Buffer)
	printResult(buf, peer.OpSum, []string{"age"}, []float64{35, 0.5})

	out := buf.String()
	require.Contains(t, out, "age")
	require.Contains(t, out, "35")
	require.Contains(t, out, "0.5")
	require.Contains(t, out, "sum")
}
