package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim/internal/testutil"
)

func TestCell_XY_RoundTrip(t *testing.T) {
	tests := []struct {
		cell Cell
		want Point
	}{
		{1, Point{0, 0}},
		{40, Point{39, 0}},
		{41, Point{0, 1}},
		{215, Point{14, 5}},
		{520, Point{39, 12}},
	}
	for _, tt := range tests {
		got := tt.cell.XY()
		if got != tt.want {
			t.Errorf("Cell(%d).XY() = %+v, want %+v", tt.cell, got, tt.want)
		}
		if back := got.Cell(); back != tt.cell {
			t.Errorf("Point(%+v).Cell() = %d, want %d", got, back, tt.cell)
		}
	}
}

func TestCell_Bands(t *testing.T) {
	assert.True(t, Cell(201).InBufferLane())
	assert.True(t, Cell(240).InBufferLane())
	assert.False(t, Cell(200).InBufferLane())
	assert.False(t, Cell(241).InBufferLane())

	assert.True(t, Cell(200).InQuayBand())
	assert.False(t, Cell(201).InQuayBand())

	assert.True(t, Cell(481).OnBoundary())
	assert.True(t, Cell(520).OnBoundary())
	assert.False(t, Cell(480).OnBoundary())

	assert.False(t, Cell(0).Valid())
	assert.False(t, Cell(521).Valid())
	assert.True(t, Cell(440).Searchable())
	assert.False(t, Cell(441).Searchable())
}

func TestLaneCell(t *testing.T) {
	tests := []struct {
		name           string
		position, lane int
		want           Cell
	}{
		{"quay lane 1", 20, 1, 20},
		{"quay lane 2", 20, 2, 60},
		{"quay lane 5", 3, 5, 163},
		{"yard lane is the cell", 500, 490, 490},
		{"holder position", 490, 490, 490},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LaneCell(tt.position, tt.lane); got != tt.want {
				t.Errorf("LaneCell(%d, %d) = %d, want %d", tt.position, tt.lane, got, tt.want)
			}
		})
	}
}

func TestNeighbours_FollowRowDirections(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want []Point
	}{
		{"westbound row", Point{5, 0}, []Point{{4, 0}, {5, 1}}},
		{"westbound row at west edge", Point{0, 2}, []Point{{0, 3}, {0, 1}}},
		{"buffer lane has no horizontal moves", Point{3, 5}, []Point{{3, 6}, {3, 4}}},
		{"eastbound row", Point{3, 6}, []Point{{4, 6}, {3, 7}, {3, 5}}},
		{"eastbound row at east edge", Point{39, 8}, []Point{{39, 9}, {39, 7}}},
		{"last lane cannot go down", Point{2, 10}, []Point{{3, 10}, {2, 9}}},
		{"off-grid has none", Point{0, 11}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Neighbours(tt.p))
		})
	}
}

func TestCanMove_IsDirected(t *testing.T) {
	assert.True(t, CanMove(Point{5, 0}, Point{4, 0}))
	assert.False(t, CanMove(Point{4, 0}, Point{5, 0}))
	assert.True(t, CanMove(Point{4, 6}, Point{5, 6}))
	assert.False(t, CanMove(Point{5, 6}, Point{4, 6}))
}

func TestDisplay_MarksPathAndBarriers(t *testing.T) {
	out := Display(Path{1, 2}, []Cell{42})

	lines := splitLines(out)
	if assert.Len(t, lines, BoundaryRow+1) {
		assert.Equal(t, "**", lines[0][:2])
		assert.Equal(t, byte('X'), lines[1][1])
		assert.Equal(t, byte('-'), lines[1][0])
		assert.Len(t, lines[0], Width)
	}
}

func TestDisplay_BufferToQuayRoute_MatchesGolden(t *testing.T) {
	// GIVEN the buffer-to-quay route planned around a barrier on the buffer lane
	r := NewRouter()
	require.NoError(t, r.SetBarrier(230))
	path, _, err := r.Route(215, 20)
	require.NoError(t, err)

	// THEN its rendering matches the recorded grid
	testutil.AssertGolden(t, "route_215_20.golden", Display(path, r.Barriers()))
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
