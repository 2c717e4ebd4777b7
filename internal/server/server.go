package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	// DefaultTick is how long inbound events accumulate before they are
	// handed to the consumer as one batch.
	DefaultTick = 100 * time.Millisecond

	// DefaultIdleWindow is how long the writer waits with nothing to send
	// before writing a keepalive byte.
	DefaultIdleWindow = 5 * time.Second

	messageBacklog = 1024
	eventBacklog   = 64
)

type Options struct {
	// Addr to listen on, host:port.
	Addr string

	// Reuseport controls setting SO_REUSEPORT on the listener.
	Reuseport bool

	// Tick overrides DefaultTick.
	Tick time.Duration

	// IdleWindow overrides DefaultIdleWindow.
	IdleWindow time.Duration

	// HandshakeTimeout bounds how long a client may take to finish option
	// negotiation. Zero means wait forever.
	HandshakeTimeout time.Duration

	Log zerolog.Logger
}

// Server accepts telnet connections and multiplexes them into one batched
// event stream. The registry of live connections is owned by the Run loop;
// Send, Broadcast, Hide and Unhide must only be called from inside the tick
// handler.
type Server struct {
	addr             string
	reuse            bool
	tick             time.Duration
	idleWindow       time.Duration
	handshakeTimeout time.Duration
	log              zerolog.Logger

	listener net.Listener
	conns    map[ConnID]*conn

	registry chan registryOp
	joins    chan ConnID
	messages chan Message

	closed    chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Server {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}
	s := &Server{
		addr:             opts.Addr,
		reuse:            opts.Reuseport,
		tick:             opts.Tick,
		idleWindow:       opts.IdleWindow,
		handshakeTimeout: opts.HandshakeTimeout,
		log:              opts.Log,
		conns:            make(map[ConnID]*conn),
		registry:         make(chan registryOp, eventBacklog),
		joins:            make(chan ConnID, eventBacklog),
		messages:         make(chan Message, messageBacklog),
		closed:           make(chan struct{}),
	}
	return s
}

// Listen binds the address and starts accepting connections.
func (s *Server) Listen() error {
	var err error
	if s.reuse {
		s.listener, err = reuseport.Listen("tcp", s.addr)
	} else {
		s.listener, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", s.listener.Addr().String()).Msg("listening")
	go s.acceptLoop()
	return nil
}

// Addr is the bound listener address, for tests and logs.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	var next ConnID
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error().Err(err).Msg("accept failed")
			}
			return
		}
		next++
		c := newConn(next, sock, s, s.log.With().
			Uint32("conn", uint32(next)).
			Str("peer", sock.RemoteAddr().String()).
			Logger())
		select {
		case s.registry <- registryOp{c: c, id: c.id}:
		case <-s.closed:
			sock.Close()
			return
		}
		c.log.Debug().Msg("connected")
		c.start()
	}
}

// Run drives the collection loop: every tick it drains whatever accumulated
// and hands it to handler as one batch. The next collection does not start
// until handler returns. Run exits when ctx is done or the server is closed.
func (s *Server) Run(ctx context.Context, handler func(Batch)) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Close()
		case <-s.closed:
			return nil
		case <-ticker.C:
			handler(s.collect())
		}
	}
}

// registryOp adds a connection to the registry, or removes it when c is nil.
// Registrations and leaves share one FIFO so a connection that is accepted
// and torn down within the same tick is always registered before its leave
// is processed.
type registryOp struct {
	c  *conn
	id ConnID
}

// collect drains every pending registry op, join and message without
// blocking. Single-channel FIFO keeps per-connection message order; nothing
// is guaranteed across connections.
func (s *Server) collect() Batch {
	var batch Batch
	for {
		select {
		case op := <-s.registry:
			if op.c != nil {
				s.conns[op.id] = op.c
			} else {
				delete(s.conns, op.id)
				batch.Left = append(batch.Left, op.id)
			}
		case id := <-s.joins:
			batch.Joined = append(batch.Joined, id)
		case m := <-s.messages:
			batch.Messages = append(batch.Messages, m)
		default:
			return batch
		}
	}
}

// Send queues text for one connection, one CRLF-terminated line per input
// line. Unknown ids are ignored.
func (s *Server) Send(id ConnID, text string) {
	if c, ok := s.conns[id]; ok {
		c.sendText(text)
	}
}

// Broadcast sends text to every known connection except exclude. Pass 0 to
// exclude nobody.
func (s *Server) Broadcast(text string, exclude ConnID) {
	for id, c := range s.conns {
		if id == exclude {
			continue
		}
		c.sendText(text)
	}
}

// Hide queues the ANSI conceal sequence so following input is not displayed.
func (s *Server) Hide(id ConnID) {
	if c, ok := s.conns[id]; ok {
		c.enqueue(ansiConceal)
	}
}

// Unhide queues the ANSI reveal sequence, undoing Hide.
func (s *Server) Unhide(id ConnID) {
	if c, ok := s.conns[id]; ok {
		c.enqueue(ansiReveal)
	}
}

// Close stops accepting, tears down every live connection, and releases the
// collection loop. Call after Run has returned, or cancel Run's context and
// let Run call it.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.listener != nil {
			err = multierr.Append(err, s.listener.Close())
		}
		for {
			select {
			case op := <-s.registry:
				if op.c != nil {
					s.conns[op.id] = op.c
				} else {
					delete(s.conns, op.id)
				}
				continue
			default:
			}
			break
		}
		for _, c := range s.conns {
			err = multierr.Append(err, c.close())
		}
		s.log.Info().Msg("server stopped")
	})
	return err
}
