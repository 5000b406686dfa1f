package traffic

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type handlerFunc func(conn net.Conn, r *messageReader, args []string)

// Server accepts dispatcher commands over TCP, one command per connection.
// A command ends at a newline or at the end of the read that carried it.
// Unknown verbs are dropped.
type Server struct {
	cfg        Config
	dispatcher *Dispatcher
	listener   net.Listener
	handlers   map[string]handlerFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server around a fresh dispatcher.
func NewServer(cfg Config) (*Server, error) {
	d, err := NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        d.cfg,
		dispatcher: d,
		conns:      make(map[net.Conn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.handlers = map[string]handlerFunc{
		VerbClock:   s.handleClock,
		VerbSync:    s.handleSync,
		VerbLogin:   s.handleLogin,
		VerbSetCell: s.handleSetCell,
		VerbGo:      s.handleGo,
	}
	return s, nil
}

// Dispatcher returns the server's dispatcher.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Addr returns the bound address. It is only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	logrus.Infof("traffic: dispatcher listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection, then waits for handlers to exit.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.dispatcher.vehicles.closeAll()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				logrus.Warnf("traffic: accept error: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("traffic: panic in handleConn: %v\n%s", r, debug.Stack())
		}
	}()

	r := newMessageReader(conn)
	line, err := r.Next()
	if err != nil {
		return
	}
	cmd, err := ParseCommand(line)
	if err != nil {
		return
	}
	handler, ok := s.handlers[cmd.Verb]
	if !ok {
		logrus.Debugf("traffic: dropping unknown command %q", cmd.Verb)
		return
	}
	handler(conn, r, cmd.Args)
}

func (s *Server) handleClock(conn net.Conn, _ *messageReader, _ []string) {
	logrus.Debug("traffic: clock subscriber connected")
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		line, err := encodeLine(Heartbeat{Now: s.dispatcher.Now()})
		if err != nil {
			return
		}
		if _, err := conn.Write(line); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleSync(_ net.Conn, _ *messageReader, args []string) {
	if len(args) < 1 {
		return
	}
	now, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		logrus.Warnf("traffic: sync got invalid time %q", args[0])
		return
	}
	s.dispatcher.SetNow(now)
}

func (s *Server) handleLogin(conn net.Conn, r *messageReader, args []string) {
	if len(args) < 1 {
		return
	}
	v := newVehicle(args[0], conn)
	s.dispatcher.vehicles.add(v)
	logrus.Infof("traffic: <%s> connected", v.name)
	defer func() {
		s.dispatcher.vehicles.remove(v)
		v.close()
		logrus.Infof("traffic: <%s> disconnected", v.name)
	}()

	for {
		msg, err := r.Next()
		if err != nil || !v.deliver(s.ctx, msg) {
			return
		}
	}
}

func (s *Server) handleSetCell(conn net.Conn, _ *messageReader, args []string) {
	cell, priority, err := ParseSetCell(args)
	if err != nil {
		logrus.Errorf("traffic: setcell got invalid command %v: %v", args, err)
		_, _ = fmt.Fprintf(conn, "error cmd %s\n", Command{Verb: VerbSetCell, Args: args})
		return
	}
	s.dispatcher.SetCell(cell, priority)
}

func (s *Server) handleGo(conn net.Conn, _ *messageReader, args []string) {
	req, err := ParseGo(args)
	if err != nil {
		logrus.Errorf("traffic: go got invalid command %v: %v", args, err)
		_, _ = fmt.Fprintf(conn, "error cmd %s\n", Command{Verb: VerbGo, Args: args})
		return
	}
	end, err := s.dispatcher.Go(s.ctx, req)
	if err != nil {
		logrus.WithError(err).Errorf("traffic: %s failed to go from %d to %d", req.AGV, req.Start, req.End)
		_, _ = fmt.Fprintf(conn, "%s\n", Rejected)
		return
	}
	_, _ = fmt.Fprintf(conn, "%d\n", end)
	logrus.Infof("traffic: %s went from %d to %d", req.AGV, req.Start, end)
}
