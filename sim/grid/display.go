package grid

import "strings"

// Display renders the grid one row per line: '*' for path cells, 'X' for barred
// cells, '-' elsewhere.
func Display(path Path, barriers []Cell) string {
	var rows [BoundaryRow + 1][Width]byte
	for y := range rows {
		for x := range rows[y] {
			rows[y][x] = '-'
		}
	}
	for _, c := range barriers {
		if c.Valid() {
			p := c.XY()
			rows[p.Y][p.X] = 'X'
		}
	}
	for _, c := range path {
		if c.Valid() {
			p := c.XY()
			rows[p.Y][p.X] = '*'
		}
	}
	var b strings.Builder
	for y := range rows {
		b.Write(rows[y][:])
		b.WriteByte('\n')
	}
	return b.String()
}
