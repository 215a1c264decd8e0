// Package server accepts client connections and feeds their requests
// into the dispatch core. Each connection gets its own goroutine; the
// number of live connections is bounded by a semaphore.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/azargarov/prioq"
	"github.com/azargarov/prioq/internal/config"
	"github.com/azargarov/prioq/internal/logging"
	"github.com/azargarov/prioq/internal/protocol"
)

const (
	rejectionTimeout          = 500 * time.Millisecond
	errMaxConnectionsResponse = "ERR max number of clients reached"
	errQueueFullResponse      = "ERR queue full, request dropped"
	errShuttingDownResponse   = "ERR server shutting down"
)

// Server is the Connection Handler side of the service.
type Server struct {
	cfg    config.Config
	core   *prioq.Core
	logger *zap.Logger

	connLimiter  chan struct{}
	wg           sync.WaitGroup
	readyCh      chan struct{}
	shuttingDown atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	conns    map[*clientConn]struct{}

	totalConns    atomic.Uint64
	rejectedConns atomic.Uint64
}

// New builds a server that enqueues into core. A nil logger is
// replaced with a no-op logger.
func New(cfg config.Config, core *prioq.Core, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:         cfg,
		core:        core,
		logger:      logger,
		connLimiter: make(chan struct{}, cfg.MaxConnections),
		readyCh:     make(chan struct{}),
		conns:       make(map[*clientConn]struct{}),
	}
}

// Ready is closed once the listener is accepting.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns the total accepted and rejected connection counts.
func (s *Server) Stats() (accepted, rejected uint64) {
	return s.totalConns.Load(), s.rejectedConns.Load()
}

// ListenAndServe listens on the configured address and serves until
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then stops
// accepting, lets every handler finish its in-flight requests and
// returns. A shutdown that outlives ShutdownTimeout is logged, not
// returned as an error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.readyCh)

	addr := ln.Addr().String()

	shutdownError := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", zap.String("address", addr))
		shutdownError <- s.shutdown(ln)
	}()

	s.logger.Info("server starting", zap.String("address", addr))

	// requests outlive the server context; they are answered during drain
	reqCtx := context.WithoutCancel(ctx)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("failed to accept connection", zap.Error(err), zap.String("address", addr))
			continue
		}

		select {
		case s.connLimiter <- struct{}{}:
			s.wg.Add(1)
			go s.handleConnection(reqCtx, conn)
		default:
			s.rejectedConns.Add(1)
			s.logger.Info("rejecting connection, limit reached", zap.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.SetWriteDeadline(time.Now().Add(rejectionTimeout))
			_ = protocol.WriteResponse(conn, errMaxConnectionsResponse)
			_ = conn.Close()
		}
	}

	cancel()
	err := <-shutdownError
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("server stopped with error", zap.Error(err), zap.String("address", addr))
		return err
	}
	if err != nil {
		s.logger.Warn("server stopped before all connections finished", zap.String("address", addr))
		return nil
	}
	s.logger.Info("server stopped gracefully", zap.String("address", addr))
	return nil
}

func (s *Server) shutdown(ln net.Listener) error {
	s.shuttingDown.Store(true)

	var err error
	if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}

	s.mu.Lock()
	for c := range s.conns {
		c.interrupt()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	wgDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(wgDone)
	}()

	select {
	case <-wgDone:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

func (s *Server) track(c *clientConn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
		return
	}
	delete(s.conns, c)
}

// handleConnection reads request lines from one client until it
// disconnects, sends the exit sentinel, or the server shuts down.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { <-s.connLimiter }()
	defer s.wg.Done()

	c := newClientConn(uuid.NewString(), conn, s.cfg.WriteTimeout)
	s.track(c, true)
	defer s.track(c, false)
	defer func() { _ = c.close() }()

	s.totalConns.Add(1)
	logger := s.logger.With(zap.String("conn_id", c.id), zap.String("remote_addr", conn.RemoteAddr().String()))
	logger.Info("new connection")

	if s.shuttingDown.Load() {
		_ = c.write(errShuttingDownResponse)
		return
	}

	// dispatch logs for this connection's requests go to the same logger
	ctx = logging.Attach(ctx, logger)

	// the initial buffer must not exceed the limit: Scanner caps tokens
	// at max(limit, cap(buf))
	limit := s.cfg.MaxLineLength + 2 // room for "\r\n"
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, limit)), limit)

	var exit bool
	for {
		if s.cfg.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				logger.Error("failed to set read deadline", zap.Error(err))
				return
			}
		}
		if s.shuttingDown.Load() {
			break
		}

		if !scanner.Scan() {
			s.logReadEnd(logger, scanner.Err())
			if errors.Is(scanner.Err(), bufio.ErrTooLong) {
				_ = c.write("ERR " + protocol.ErrLineTooLong.Error())
				break
			}
			if s.shuttingDown.Load() {
				break
			}
			// the client is gone or idle; nobody is left to read responses
			return
		}

		line, err := protocol.ParseLineLimit(scanner.Text(), s.cfg.MaxLineLength)
		if errors.Is(err, protocol.ErrLineTooLong) {
			logger.Info("request line too long, closing connection")
			_ = c.write("ERR " + err.Error())
			break
		}
		if err != nil {
			logger.Debug("malformed request", zap.Error(err))
			if werr := c.write("ERR " + err.Error()); werr != nil {
				return
			}
			continue
		}
		if line.Exit {
			exit = true
			break
		}

		c.pending.Add(1)
		err = s.core.Enqueue(prioq.Request{
			ID:       uuid.NewString(),
			Priority: line.Priority,
			Payload:  line.Command,
			Target:   c.target(),
			Ctx:      ctx,
		})
		if err == nil {
			continue
		}
		c.pending.Done()

		if errors.Is(err, prioq.ErrQueueFull) {
			logger.Warn("queue full, request dropped", zap.Stringer("priority", line.Priority))
			if werr := c.write(errQueueFullResponse); werr != nil {
				return
			}
			continue
		}
		logger.Info("core closed, ending connection", zap.Error(err))
		_ = c.write(errShuttingDownResponse)
		break
	}

	if !c.waitPending(s.cfg.ShutdownTimeout) {
		logger.Warn("closing connection with unanswered requests")
	}
	if exit {
		_ = c.write(protocol.Goodbye)
		logger.Info("client exited")
	}
}

func (s *Server) logReadEnd(logger *zap.Logger, err error) {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF):
		logger.Info("client disconnected")
	case s.shuttingDown.Load():
		logger.Info("connection interrupted by shutdown")
	case errors.Is(err, bufio.ErrTooLong):
		logger.Info("request line too long, closing connection")
	case errors.As(err, &ne) && ne.Timeout(), errors.Is(err, os.ErrDeadlineExceeded):
		logger.Info("idle timeout, closing connection")
	default:
		logger.Error("read error", zap.Error(err))
	}
}
