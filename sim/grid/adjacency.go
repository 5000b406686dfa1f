package grid

// direction of horizontal travel permitted on a lane row.
type direction int

const (
	noHorizontal direction = iota
	westbound
	eastbound
)

// rowDirection lists the one-way lanes. The buffer lane allows no horizontal travel.
var rowDirection = [Lanes]direction{
	0:  westbound,
	1:  westbound,
	2:  westbound,
	3:  westbound,
	4:  westbound,
	5:  noHorizontal,
	6:  eastbound,
	7:  westbound,
	8:  eastbound,
	9:  westbound,
	10: eastbound,
}

// Neighbours returns the points reachable from p in one move. Vertical moves are
// allowed between any two adjacent lanes; horizontal moves follow the row direction.
func Neighbours(p Point) []Point {
	if p.Y < 0 || p.Y >= Lanes || p.X < 0 || p.X >= Width {
		return nil
	}
	out := make([]Point, 0, 3)
	switch rowDirection[p.Y] {
	case westbound:
		if p.X > 0 {
			out = append(out, Point{X: p.X - 1, Y: p.Y})
		}
	case eastbound:
		if p.X < Width-1 {
			out = append(out, Point{X: p.X + 1, Y: p.Y})
		}
	}
	if p.Y < Lanes-1 {
		out = append(out, Point{X: p.X, Y: p.Y + 1})
	}
	if p.Y > 0 {
		out = append(out, Point{X: p.X, Y: p.Y - 1})
	}
	return out
}

// CanMove reports whether a single move from a to b is legal.
func CanMove(a, b Point) bool {
	for _, n := range Neighbours(a) {
		if n == b {
			return true
		}
	}
	return false
}
