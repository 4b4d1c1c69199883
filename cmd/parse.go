package cmd

import (
	"strconv"
	"strings"

	"go.dedis.ch/mpcstats/peer"
	"golang.org/x/xerrors"
)

// parseColumns parses columns written as "1,2,3;4,5": columns are separated
// by ';' and rows by ','. An empty column is allowed.
func parseColumns(text string) ([][]float64, error) {
	var res [][]float64
	for c, column := range strings.Split(text, ";") {
		rows := []float64{}
		for _, field := range strings.Split(column, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, xerrors.Errorf("column %d: %v: %w", c, err, peer.ErrInvalidInput)
			}
			rows = append(rows, v)
		}
		res = append(res, rows)
	}
	return res, nil
}

// parseCounts parses row counts with the same layout as parseColumns.
func parseCounts(text string) ([][]int64, error) {
	var res [][]int64
	for c, column := range strings.Split(text, ";") {
		rows := []int64{}
		for _, field := range strings.Split(column, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("column %d: %v: %w", c, err, peer.ErrInvalidInput)
			}
			rows = append(rows, v)
		}
		res = append(res, rows)
	}
	return res, nil
}
