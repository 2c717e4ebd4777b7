package server

import (
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lethe/charon/internal/telnet"
)

const (
	readBufSize     = 4096
	outboundBacklog = 64
)

// keepalive is a single NUL written after the idle window elapses with no
// outbound traffic, so dead peers surface as write errors.
var keepalive = []byte{0}

var (
	ansiConceal = []byte("\x1b[8m")
	ansiReveal  = []byte("\x1b[28m")
)

// conn owns one socket, one negotiator, one parser, and one outbound
// channel. The read loop is the only goroutine that touches the negotiator
// and parser.
type conn struct {
	id   ConnID
	sock net.Conn
	srv  *Server
	log  zerolog.Logger

	neg    *telnet.Negotiator
	parser *telnet.Parser

	out  chan []byte
	done chan struct{}

	negotiated atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

func newConn(id ConnID, sock net.Conn, srv *Server, log zerolog.Logger) *conn {
	c := &conn{
		id:   id,
		sock: sock,
		srv:  srv,
		log:  log,
		out:  make(chan []byte, outboundBacklog),
		done: make(chan struct{}),
	}
	c.neg = telnet.NewNegotiator(c.enqueue)
	c.parser = telnet.NewParser(c.neg, c.enqueue)
	return c
}

func (c *conn) start() {
	c.neg.Start()
	if d := c.srv.handshakeTimeout; d > 0 {
		timer := time.AfterFunc(d, func() {
			if !c.negotiated.Load() {
				c.sock.Write([]byte("negotiation timed out\r\n"))
				c.teardown()
			}
		})
		go func() {
			<-c.done
			timer.Stop()
		}()
	}
	go c.readLoop()
	go c.writeLoop()
}

func (c *conn) readLoop() {
	defer c.teardown()
	buf := make([]byte, readBufSize)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			lines, perr := c.parser.Parse(buf[:n])
			for _, line := range lines {
				select {
				case c.srv.messages <- Message{ID: c.id, Line: string(line)}:
				case <-c.done:
					return
				}
			}
			if perr != nil {
				if errors.Is(perr, telnet.ErrInterrupt) {
					c.log.Debug().Msg("client interrupt")
				}
				return
			}
			if nerr := c.neg.Negotiate(); nerr != nil {
				var incompat *telnet.IncompatibleClientError
				if errors.As(nerr, &incompat) {
					c.sock.Write([]byte(incompat.Reason + "\r\n"))
				}
				c.log.Debug().Err(nerr).Msg("negotiation failed")
				return
			}
			if !c.negotiated.Load() && c.neg.Negotiated() {
				c.negotiated.Store(true)
				c.log.Debug().Msg("negotiation complete")
				select {
				case c.srv.joins <- c.id:
				case <-c.done:
					return
				}
			}
		}
		if err != nil || n == 0 {
			return
		}
	}
}

func (c *conn) writeLoop() {
	defer c.teardown()
	idle := time.NewTimer(c.srv.idleWindow)
	defer idle.Stop()
	for {
		select {
		case <-c.done:
			return
		case p, ok := <-c.out:
			if !ok {
				return
			}
			if _, err := c.sock.Write(p); err != nil {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(c.srv.idleWindow)
		case <-idle.C:
			if _, err := c.sock.Write(keepalive); err != nil {
				return
			}
			idle.Reset(c.srv.idleWindow)
		}
	}
}

// enqueue puts raw bytes on the outbound channel, giving up if the
// connection is already down.
func (c *conn) enqueue(p []byte) {
	select {
	case c.out <- p:
	case <-c.done:
	}
}

// sendText splits text into lines and queues each with a CRLF terminator.
func (c *conn) sendText(text string) {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimRight(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		c.enqueue([]byte(line + "\r\n"))
	}
}

// teardown stops both loops, closes the socket, and reports the departure
// exactly once. Safe to call from any goroutine, any number of times.
func (c *conn) teardown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.sock.Close()
		select {
		case c.srv.registry <- registryOp{id: c.id}:
		case <-c.srv.closed:
		}
		c.log.Debug().Msg("disconnected")
	})
}

func (c *conn) close() error {
	c.teardown()
	return c.closeErr
}
