package telnet

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

type parseState int

const (
	stateData parseState = 0 + iota
	stateCommand
	stateSubnegotiation
)

// Parser turns the raw inbound byte stream into complete CRLF-terminated
// lines. Negotiation commands are routed to the Negotiator, sub-negotiation
// payloads are queued on it, and a partial trailing line is cached between
// calls.
type Parser struct {
	neg  *Negotiator
	send func([]byte)

	state parseState
	cmd   byte // DO/DONT/WILL/WONT awaiting its option byte
	line  []byte
	sub   []byte
	prev  byte // previous data byte, for CR/LF pairing

	dec *encoding.Decoder
}

func NewParser(neg *Negotiator, send func([]byte)) *Parser {
	return &Parser{
		neg:  neg,
		send: send,
		dec:  unicode.UTF8.NewDecoder(),
	}
}

// Parse consumes one buffer and returns the complete lines it finished, each
// including its trailing CRLF. An incomplete trailing line stays cached until
// a later call completes it. The returned error is either ErrInterrupt or
// nil; parsing state is not usable after an error.
func (p *Parser) Parse(data []byte) (lines [][]byte, err error) {
	for _, b := range data {
		switch p.state {
		case stateData:
			switch {
			case b == IAC:
				p.state = stateCommand
				p.cmd = 0
				continue
			case b == etx:
				return lines, ErrInterrupt
			case b == '\b':
				if n := len(p.line); n > 0 {
					p.line = p.line[:n-1]
				}
			case b == '\n':
				if p.prev != '\r' {
					// Bare LF: the client is not sending CRLF, so return the
					// CR it owes us and account for one anyway.
					p.send([]byte{'\r'})
					p.line = append(p.line, '\r', '\n')
					lines = append(lines, p.flush())
				}
			case b == '\r':
				p.line = append(p.line, '\r', '\n')
				lines = append(lines, p.flush())
			case b == '\t' || b > 31:
				p.line = append(p.line, b)
			default:
				// dropped
			}
			p.prev = b

		case stateCommand:
			if p.cmd != 0 {
				p.neg.receive(p.cmd, b)
				p.cmd = 0
				p.state = stateData
				continue
			}
			switch b {
			case SB:
				p.state = stateSubnegotiation
				p.sub = nil
			case DO, DONT, WILL, WONT:
				p.cmd = b
			case IP, BRK:
				return lines, ErrInterrupt
			default:
				p.state = stateData
			}

		case stateSubnegotiation:
			if b == SE && len(p.sub) > 0 && p.sub[len(p.sub)-1] == IAC {
				p.neg.push(p.sub[:len(p.sub)-1])
				p.sub = nil
				p.state = stateData
			} else {
				p.sub = append(p.sub, b)
			}
		}
	}
	return lines, nil
}

// etx is Ctrl-C.
const etx = 3

func (p *Parser) flush() []byte {
	line := p.line
	p.line = nil
	// The wire is negotiated binary and assumed UTF-8; scrub anything that
	// is not valid UTF-8 before it reaches the consumer.
	if out, err := p.dec.Bytes(line); err == nil {
		return out
	}
	return line
}
