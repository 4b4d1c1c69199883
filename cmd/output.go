package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/markkurossi/tabulate"
	"go.dedis.ch/mpcstats/peer"
)

// printResult renders the result of an operation as a table, one row per
// column.
func printResult(w io.Writer, op peer.Op, names []string, values []float64) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Column").SetAlign(tabulate.ML)
	tab.Header(string(op)).SetAlign(tabulate.MR)

	for i, v := range values {
		name := strconv.Itoa(i)
		if i < len(names) {
			name = names[i]
		}

		row := tab.Row()
		row.Column(name)
		row.Column(fmt.Sprintf("%g", v))
	}

	tab.Print(w)
}
