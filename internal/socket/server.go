// Package socket serves the record log over TCP. Each newline-terminated
// packet a client sends is appended and answered with the full log; the seek
// command line repositions the reply instead of being stored.
package socket

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/buffer"
	"github.com/jittakal/ringlog/pkg/record"
)

// DefaultSeekCommand prefixes the seek line "AESDCHAR_IOCSEEKTO:X,Y".
const DefaultSeekCommand = "AESDCHAR_IOCSEEKTO:"

// Config contains socket server configuration.
type Config struct {
	Address         string
	ReadBufferBytes int
	SeekCommand     string
}

// MetricsCollector defines metrics operations for the socket server.
type MetricsCollector interface {
	ConnectionOpened()
	ConnectionClosed()
	AddBytesReceived(n int)
	AddBytesSent(n int64)
	IncSeekRequests(status string)
	IncTimestampsInjected(status string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()            {}
func (noopMetrics) ConnectionClosed()            {}
func (noopMetrics) AddBytesReceived(int)         {}
func (noopMetrics) AddBytesSent(int64)           {}
func (noopMetrics) IncSeekRequests(string)       {}
func (noopMetrics) IncTimestampsInjected(string) {}

// Server accepts TCP clients and feeds them into a buffer.Log.
type Server struct {
	log         buffer.Log
	config      Config
	seekCommand []byte
	logger      *slog.Logger
	metrics     MetricsCollector

	mu        sync.Mutex
	listener  net.Listener
	accepting atomic.Bool
}

// NewServer creates a socket server. Listen binds it; Serve runs it.
func NewServer(log buffer.Log, config Config, logger *slog.Logger, metrics MetricsCollector) *Server {
	if config.ReadBufferBytes < 16 {
		config.ReadBufferBytes = 1024
	}
	if config.SeekCommand == "" {
		config.SeekCommand = DefaultSeekCommand
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Server{
		log:         log,
		config:      config,
		seekCommand: []byte(config.SeekCommand),
		logger:      logger,
		metrics:     metrics,
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.listener = ln
	s.logger.Info("socket server bound", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready(context.Context) error {
	if !s.accepting.Load() {
		return errors.New("socket server not accepting connections")
	}
	return nil
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and every open connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	ln := s.listener

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		s.accepting.Store(false)
		_ = ln.Close()
		return nil
	})

	g.Go(func() error {
		s.accepting.Store(true)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept failed: %w", err)
			}

			g.Go(func() error {
				s.handle(gctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	s.logger.Info("socket server stopped")
	return err
}

// session holds the framing state of one connection.
type session struct {
	srv    *Server
	conn   net.Conn
	logger *slog.Logger

	// midLine is set while the bytes of an unterminated line are in flight.
	midLine bool
	// discarding drops input up to the next terminator after an oversized line.
	discarding bool
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	host := conn.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	c := &session{
		srv:    s,
		conn:   conn,
		logger: s.logger.With("conn_id", uuid.NewString(), "remote", conn.RemoteAddr().String()),
	}

	c.logger.Info("accepted connection from " + host)
	s.metrics.ConnectionOpened()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		s.metrics.ConnectionClosed()
		c.logger.Info("closed connection from " + host)
	}()

	r := bufio.NewReaderSize(conn, s.config.ReadBufferBytes)
	for {
		chunk, err := r.ReadSlice(record.Terminator)
		if len(chunk) > 0 {
			s.metrics.AddBytesReceived(len(chunk))
			if perr := c.handleChunk(ctx, chunk); perr != nil {
				if ctx.Err() == nil {
					c.logger.Warn("dropping connection", "error", perr)
				}
				return
			}
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return
		default:
			c.logger.Warn("connection read failed", "error", err)
			return
		}
	}
}

// handleChunk processes one piece of a line. chunk is only valid until the
// next read.
func (c *session) handleChunk(ctx context.Context, chunk []byte) error {
	complete := chunk[len(chunk)-1] == record.Terminator
	startOfLine := !c.midLine
	c.midLine = !complete

	if c.discarding {
		c.discarding = !complete
		return nil
	}

	if startOfLine && complete && bytes.HasPrefix(chunk, c.srv.seekCommand) {
		return c.seek(ctx, chunk[len(c.srv.seekCommand):])
	}

	if _, err := c.srv.log.Write(ctx, chunk); err != nil {
		if errors.Is(err, errors.ErrAllocation) {
			// earlier pieces of this line are already pending
			dropped, derr := c.srv.log.DiscardPending(ctx)
			if derr != nil {
				return derr
			}
			c.logger.Warn("discarding oversized line", "pending_dropped", dropped, "error", err)
			c.discarding = !complete
			return nil
		}
		return err
	}

	if complete {
		return c.sendFrom(ctx, 0)
	}
	return nil
}

func (c *session) seek(ctx context.Context, args []byte) error {
	index, offset, err := parseSeekArgs(args)
	if err != nil {
		c.srv.metrics.IncSeekRequests("invalid")
		c.logger.Warn("invalid seek command", "args", strings.TrimSpace(string(args)), "error", err)
		return nil
	}

	off, err := c.srv.log.SeekTo(ctx, index, offset)
	if err != nil {
		if errors.Is(err, errors.ErrOutOfRange) {
			c.srv.metrics.IncSeekRequests("out_of_range")
			c.logger.Warn("seek out of range", "index", index, "offset", offset)
			return nil
		}
		return err
	}

	c.srv.metrics.IncSeekRequests("success")
	c.logger.Debug("seek", "index", index, "offset", offset, "position", off)
	return c.sendFrom(ctx, off)
}

// sendFrom streams the log from off to the end of the data.
func (c *session) sendFrom(ctx context.Context, off int64) error {
	n, err := io.Copy(c.conn, c.srv.log.Reader(ctx, off))
	c.srv.metrics.AddBytesSent(n)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
	}
	return nil
}

// parseSeekArgs parses "X,Y" followed by the line terminator.
func parseSeekArgs(args []byte) (index, offset int, err error) {
	s := strings.TrimRight(string(args), "\r\n")
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want X,Y, got %q", s)
	}

	index, err = strconv.Atoi(strings.TrimSpace(x))
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("invalid record index %q", x)
	}
	offset, err = strconv.Atoi(strings.TrimSpace(y))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid record offset %q", y)
	}
	return index, offset, nil
}
