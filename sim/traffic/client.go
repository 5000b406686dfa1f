package traffic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/easyterm/easyterm/sim/grid"
)

// Client issues request/response commands to a dispatcher. Each call uses its own
// connection, which the dispatcher closes once the command has been processed.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient creates a client for the dispatcher at addr.
func NewClient(addr string) *Client {
	return &Client{addr: addr, timeout: 5 * time.Second}
}

// SetTimeout sets the dial timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Addr returns the dispatcher address.
func (c *Client) Addr() string { return c.addr }

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connect to dispatcher at %s: %w", c.addr, err)
	}
	return conn, nil
}

// call sends one command line and returns the dispatcher's reply, read until the
// dispatcher closes the connection.
func (c *Client) call(ctx context.Context, line string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return "", fmt.Errorf("send %q: %w", line, err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read reply to %q: %w", line, err)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	text := strings.TrimSpace(string(reply))
	if strings.HasPrefix(text, "error") {
		return "", fmt.Errorf("%s: %w", text, ErrBadCommand)
	}
	return text, nil
}

// SetCell publishes priority as the gate value of cell.
func (c *Client) SetCell(ctx context.Context, cell grid.Cell, priority int) error {
	_, err := c.call(ctx, fmt.Sprintf("%s %d %d", VerbSetCell, cell, priority))
	return err
}

// Sync reports the simulation's current time.
func (c *Client) Sync(ctx context.Context, now float64) error {
	_, err := c.call(ctx, fmt.Sprintf("%s %s", VerbSync, strconv.FormatFloat(now, 'f', -1, 64)))
	return err
}

// Go asks the dispatcher to execute one leg and returns the cell the vehicle ended on.
// A -1 reply is reported as ErrRejected.
func (c *Client) Go(ctx context.Context, req GoRequest) (grid.Cell, error) {
	reply, err := c.call(ctx, req.String())
	if err != nil {
		return 0, err
	}
	if reply == Rejected {
		return 0, fmt.Errorf("%s from %d to %d: %w", req.AGV, req.Start, req.End, ErrRejected)
	}
	n, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("go reply %q: %w", reply, ErrBadCommand)
	}
	return grid.Cell(n), nil
}

// Watch subscribes to the dispatcher clock and calls fn for every heartbeat until
// ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(Heartbeat)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, VerbClock+"\n"); err != nil {
		return err
	}
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var hb Heartbeat
		if err := json.Unmarshal(sc.Bytes(), &hb); err != nil {
			return fmt.Errorf("heartbeat %q: %w", sc.Text(), err)
		}
		fn(hb)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return sc.Err()
}

// Login opens a vehicle's persistent channel.
func (c *Client) Login(ctx context.Context, name string) (*VehicleConn, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(conn, fmt.Sprintf("%s %s\n", VerbLogin, name)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("login %s: %w", name, err)
	}
	return &VehicleConn{name: name, conn: conn, sc: bufio.NewScanner(conn)}, nil
}

// VehicleConn is the vehicle side of a persistent channel: it receives path
// directives and reports arrivals.
type VehicleConn struct {
	name string
	conn net.Conn
	sc   *bufio.Scanner
}

// Name returns the login name.
func (v *VehicleConn) Name() string { return v.name }

// Next blocks until the dispatcher pushes a directive.
func (v *VehicleConn) Next(ctx context.Context) (Directive, error) {
	stop := context.AfterFunc(ctx, func() { _ = v.conn.SetReadDeadline(time.Now()) })
	defer stop()
	if !v.sc.Scan() {
		if ctx.Err() != nil {
			return Directive{}, ctx.Err()
		}
		if err := v.sc.Err(); err != nil {
			return Directive{}, err
		}
		return Directive{}, io.EOF
	}
	var d Directive
	if err := json.Unmarshal(v.sc.Bytes(), &d); err != nil {
		return Directive{}, fmt.Errorf("directive %q: %w", v.sc.Text(), err)
	}
	return d, nil
}

// Confirm reports the cell the vehicle reached.
func (v *VehicleConn) Confirm(cell grid.Cell) error {
	_, err := fmt.Fprintf(v.conn, "%d\n", cell)
	return err
}

// Close ends the channel.
func (v *VehicleConn) Close() error {
	return v.conn.Close()
}
