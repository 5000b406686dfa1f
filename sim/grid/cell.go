// Package grid models the terminal's lane grid and plans AGV routes on it.
//
// Cells are numbered from 1, row by row, Width cells per row. Rows 0..10 are the
// drivable lanes; row BufferLane is the neutral parking row. Row BoundaryRow holds
// the yard-side handoff cells, reached through a two-cell stub from row 10.
package grid

import (
	"errors"
	"fmt"
)

const (
	// Width is the number of cells per row.
	Width = 40
	// Lanes is the number of drivable rows searched by the router.
	Lanes = 11
	// BoundaryRow is the yard-side row at the far edge of the grid.
	BoundaryRow = 12
	// BufferLane is the parking row AGVs return to between tasks.
	BufferLane = 5
	// QuayRows is the number of quay-side rows whose cells are reached through a stub.
	QuayRows = 5

	// BarrierCost is the cost of entering a barred cell.
	BarrierCost = 1000
	// UnreachableCost is the cost reported when the goal cannot be reached.
	UnreachableCost = 1001

	// MaxCell is the highest valid cell number.
	MaxCell = Width * (BoundaryRow + 1)
)

var (
	// ErrInvalidCell is returned for a cell outside the grid or outside the searchable lanes.
	ErrInvalidCell = errors.New("invalid cell")
	// ErrNoRoute is returned when the goal cannot be reached from the start.
	ErrNoRoute = errors.New("no route")
	// ErrNoFreeCell is returned when every buffer-lane cell is barred.
	ErrNoFreeCell = errors.New("no free buffer-lane cell")
)

// Cell is a 1-based grid cell number.
type Cell int

// Point is a 0-based (column, row) coordinate.
type Point struct {
	X, Y int
}

// At returns the cell at column x, row y.
func At(x, y int) Cell {
	return Cell(y*Width + x + 1)
}

// XY returns the cell's column and row.
func (c Cell) XY() Point {
	return Point{X: (int(c) - 1) % Width, Y: (int(c) - 1) / Width}
}

// Cell returns the cell at p.
func (p Point) Cell() Cell { return At(p.X, p.Y) }

// Valid reports whether c lies on the grid, boundary row included.
func (c Cell) Valid() bool {
	return c >= 1 && c <= MaxCell
}

// Searchable reports whether c lies on one of the drivable lanes.
func (c Cell) Searchable() bool {
	return c >= 1 && c <= Width*Lanes
}

// InBufferLane reports whether c lies on the buffer lane.
func (c Cell) InBufferLane() bool {
	return c >= Width*BufferLane+1 && c <= Width*(BufferLane+1)
}

// InQuayBand reports whether c lies on one of the quay-side rows.
func (c Cell) InQuayBand() bool {
	return c > 0 && c <= Width*QuayRows
}

// OnBoundary reports whether c lies on the yard-side boundary row.
func (c Cell) OnBoundary() bool {
	return c >= Width*BoundaryRow+1 && c <= Width*(BoundaryRow+1)
}

// rowFirst returns the first cell of c's row.
func (c Cell) rowFirst() Cell {
	return c - Cell(c.XY().X)
}

func (c Cell) String() string { return fmt.Sprintf("%d", int(c)) }

// LaneCell maps a facility's base position and one of its lanes to the handoff cell.
// Quay positions (the first row) are offset by lane rows; anything else is a yard
// position whose lane id already is the cell.
func LaneCell(position, lane int) Cell {
	if position < Width {
		return Cell((lane-1)*Width + position)
	}
	return Cell(lane)
}
