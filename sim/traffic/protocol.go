// Package traffic implements the traffic dispatcher: a text-command TCP
// server that plans AGV routes, serializes buffer-lane crossings with barriers and
// holds each handoff until the destination's priority gate admits it.
//
// Requests are a verb followed by space-separated arguments, ended by a newline or
// by the end of the send that carried them. A vehicle logs in once over a
// persistent connection; path directives are pushed to it as JSON lines and it
// answers with the cell it reached.
package traffic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/easyterm/easyterm/sim/grid"
)

// Command verbs.
const (
	VerbClock   = "clock"
	VerbSync    = "sync"
	VerbLogin   = "login"
	VerbSetCell = "setcell"
	VerbGo      = "go"
)

// Leg flags carried by go requests and path directives.
const (
	FlagToStart = 0
	FlagToEnd   = 1
	FlagReturn  = -1
)

// Rejected is the go reply sent when a move could not be completed.
const Rejected = "-1"

var (
	// ErrBadCommand is returned for a malformed command line or argument.
	ErrBadCommand = errors.New("bad command")
	// ErrUnknownVehicle is returned when a go request names a vehicle that never logged in.
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrProtocol is returned when a vehicle confirms a cell other than the expected one.
	ErrProtocol = errors.New("protocol consistency fault")
	// ErrGateTimeout is returned when a destination gate did not admit a move in time.
	ErrGateTimeout = errors.New("priority gate timeout")
	// ErrConfirmTimeout is returned when a vehicle did not confirm its arrival in time.
	ErrConfirmTimeout = errors.New("arrival confirmation timeout")
	// ErrRejected is returned by the client when the dispatcher answered a go with -1.
	ErrRejected = errors.New("move rejected by dispatcher")
)

// Command is one parsed request line.
type Command struct {
	Verb string
	Args []string
}

// ParseCommand splits a request line into its verb and arguments.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty line: %w", ErrBadCommand)
	}
	return Command{Verb: fields[0], Args: fields[1:]}, nil
}

func (c Command) String() string {
	return strings.TrimSpace(c.Verb + " " + strings.Join(c.Args, " "))
}

// GoRequest asks the dispatcher to move a vehicle from Start to End.
type GoRequest struct {
	AGV      string
	Priority int
	Start    grid.Cell
	End      grid.Cell
	Speed    int
	Flag     int
}

// String formats the request as a go command line.
func (r GoRequest) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", VerbGo, r.AGV, r.Priority, r.Start, r.End, r.Speed, r.Flag)
}

// ParseGo decodes the arguments of a go command.
func ParseGo(args []string) (GoRequest, error) {
	if len(args) < 6 {
		return GoRequest{}, fmt.Errorf("go needs 6 arguments, got %d: %w", len(args), ErrBadCommand)
	}
	nums, err := atoiAll(args[1:6])
	if err != nil {
		return GoRequest{}, err
	}
	req := GoRequest{
		AGV:      args[0],
		Priority: nums[0],
		Start:    grid.Cell(nums[1]),
		End:      grid.Cell(nums[2]),
		Speed:    nums[3],
		Flag:     nums[4],
	}
	switch req.Flag {
	case FlagToStart, FlagToEnd, FlagReturn:
	default:
		return GoRequest{}, fmt.Errorf("go flag %d: %w", req.Flag, ErrBadCommand)
	}
	return req, nil
}

// ParseSetCell decodes the arguments of a setcell command.
func ParseSetCell(args []string) (grid.Cell, int, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("setcell needs 2 arguments, got %d: %w", len(args), ErrBadCommand)
	}
	nums, err := atoiAll(args[:2])
	if err != nil {
		return 0, 0, err
	}
	return grid.Cell(nums[0]), nums[1], nil
}

func atoiAll(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, ErrBadCommand)
		}
		out[i] = n
	}
	return out, nil
}

// Directive is a path segment pushed to a logged-in vehicle.
type Directive struct {
	Path  []int `json:"path"`
	Speed int   `json:"speed"`
	Flag  int   `json:"flag"`
}

// Destination returns the last cell of the directive's path.
func (d Directive) Destination() grid.Cell {
	if len(d.Path) == 0 {
		return 0
	}
	return grid.Cell(d.Path[len(d.Path)-1])
}

// Heartbeat is the message streamed to clock subscribers.
type Heartbeat struct {
	Now float64 `json:"now"`
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
