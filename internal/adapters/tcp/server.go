// Package tcp implements the line-protocol receiver that pill-bottle
// scales stream mass readings to.
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/app"
	"github.com/okian/dosewatch/internal/domain/model"
	"github.com/okian/dosewatch/pkg/logger"
	"github.com/okian/dosewatch/pkg/metrics"
)

// DefaultIdleTimeout is how long a connection may stay silent before it is
// torn down.
const DefaultIdleTimeout = 30 * time.Second

// subjectPrefix introduces the control line that pins a connection to one
// subject, e.g. "subject 12".
const subjectPrefix = "subject "

// Processor consumes parsed readings. Satisfied by *app.Service.
type Processor interface {
	ProcessReading(ctx context.Context, raw float64, pinned *model.SubjectID) (app.Outcome, error)
}

// Server accepts scale connections and feeds their readings into the
// processor, one goroutine per connection.
type Server struct {
	mu sync.Mutex

	addr        string
	idleTimeout time.Duration
	processor   Processor
	logger      logger.Logger

	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithIdleTimeout sets the per-connection read-idle timeout.
func WithIdleTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.idleTimeout = timeout
		}
	}
}

// WithServerLogger sets a custom logger for the server.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds a receiver that hands readings to p.
func NewServer(p Processor, opts ...ServerOption) *Server {
	s := &Server{
		addr:        "0.0.0.0:5005",
		idleTimeout: DefaultIdleTimeout,
		processor:   p,
		conns:       make(map[net.Conn]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listener and begins accepting connections. It returns
// once the listener is bound; accepting happens in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.logger.Info(ctx, "tcp receiver listening", logger.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the bound listen address. Nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live connection, then waits for the
// connection goroutines to drain.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed || s.listener == nil {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.listener.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info(context.Background(), "tcp receiver stopped")
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error(ctx, "accept failed", logger.Error(err))
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	connID := uuid.New().String()
	log := s.logger.Named("conn")

	metrics.RecordConnectionOpened()
	log.Info(ctx, "connection opened",
		logger.String("connID", connID),
		logger.String("remote", conn.RemoteAddr().String()),
	)

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		metrics.RecordConnectionClosed()
	}()

	framer := NewFramer(newIdleReader(conn, s.idleTimeout))
	var pinned *model.SubjectID

	for {
		line, err := framer.Next()
		if err != nil {
			s.logDisconnect(ctx, log, connID, err)
			return
		}
		metrics.RecordLineReceived(len(line))

		if rest, ok := strings.CutPrefix(line, subjectPrefix); ok {
			id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				metrics.RecordParseError()
				log.Warn(ctx, "bad subject control line",
					logger.String("connID", connID),
					logger.String("line", line),
				)
				continue
			}
			sid := model.SubjectID(id)
			pinned = &sid
			log.Info(ctx, "connection pinned to subject",
				logger.String("connID", connID),
				logger.Int64("subjectID", id),
			)
			continue
		}

		grams, err := strconv.ParseFloat(line, 64)
		if err != nil {
			metrics.RecordParseError()
			log.Debug(ctx, "skipping non-numeric line",
				logger.String("connID", connID),
				logger.String("line", line),
			)
			continue
		}

		if _, err := s.processor.ProcessReading(ctx, grams, pinned); err != nil {
			reason := "store_unavailable"
			if repository.IsNotFound(err) {
				reason = "subject_not_found"
			}
			metrics.RecordReadingDropped(reason)
			log.Error(ctx, "reading dropped",
				logger.String("connID", connID),
				logger.String("reason", reason),
				logger.Float64("grams", grams),
				logger.Error(err),
			)
		}
	}
}

func (s *Server) logDisconnect(ctx context.Context, log logger.Logger, connID string, err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		metrics.RecordConnectionTimeout()
		log.Info(ctx, "idle timeout, closing connection", logger.String("connID", connID))
	case errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed):
		log.Info(ctx, "connection closed by peer", logger.String("connID", connID))
	case errors.Is(err, ErrLineTooLong):
		log.Warn(ctx, "closing connection", logger.String("connID", connID), logger.Error(err))
	default:
		log.Error(ctx, "connection read failed", logger.String("connID", connID), logger.Error(err))
	}
}
