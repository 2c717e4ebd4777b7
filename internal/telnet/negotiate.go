package telnet

import (
	"bytes"
	"slices"
	"strings"
)

// Phase is how far along the handshake is for one required capability.
type Phase int

const (
	PhaseBefore Phase = 0 + iota
	PhaseDuring
	PhaseAfter
)

// allowedTerminals is matched case-insensitively against the name the client
// reports in its TERMINAL-TYPE IS response.
var allowedTerminals = []string{"XTERM", "ANSI"}

// Negotiator drives the handshake for one connection. It owns the option
// state machines and the queue of completed sub-negotiation payloads; its
// only side effects are bytes handed to send (which the connection handler
// enqueues on the outbound channel) and the errors it returns.
type Negotiator struct {
	opts *optionMap
	send func([]byte)

	binary   Phase
	terminal Phase
	linemode Phase

	// pending holds completed IAC SB ... IAC SE payloads, in arrival order,
	// until a phase consumes them.
	pending [][]byte

	// offered is the last terminal name the client sent that we rejected. A
	// client that repeats it has exhausted its list.
	offered []byte
}

func NewNegotiator(send func([]byte)) *Negotiator {
	return &Negotiator{
		opts: newOptionMap(),
		send: send,
	}
}

// Start sends the opening requests: binary transmission both ways, terminal
// type and linemode from the remote.
func (n *Negotiator) Start() {
	binary := n.opts.get(TransmitBinary)
	binary.us = qWantYes
	binary.them = qWantYes
	n.opts.get(TerminalType).them = qWantYes
	n.opts.get(Linemode).them = qWantYes
	n.send([]byte{
		IAC, DO, TransmitBinary,
		IAC, WILL, TransmitBinary,
		IAC, DO, TerminalType,
		IAC, DO, Linemode,
	})
}

// receive applies one DO/DONT/WILL/WONT for an option code. Called by the
// parser as negotiation commands come off the wire.
func (n *Negotiator) receive(cmd, opt byte) {
	n.opts.get(opt).receive(cmd)
}

// push appends a completed sub-negotiation payload for Negotiate to consume.
func (n *Negotiator) push(payload []byte) {
	n.pending = append(n.pending, payload)
}

// Negotiated reports whether all three required capabilities have settled.
func (n *Negotiator) Negotiated() bool {
	return n.binary == PhaseAfter && n.terminal == PhaseAfter && n.linemode == PhaseAfter
}

// Negotiate reacts to whatever state changes and sub-negotiation payloads
// have accumulated since the last call. A non-nil error is always an
// *IncompatibleClientError and means the connection must be torn down.
func (n *Negotiator) Negotiate() error {
	for _, o := range n.opts.m {
		switch o.opt {
		case TransmitBinary, TerminalType, Linemode:
			continue
		}
		if o.us == qYes {
			n.send([]byte{IAC, WONT, o.opt})
			o.us = qWantNo
		}
		if o.them == qYes {
			n.send([]byte{IAC, DONT, o.opt})
			o.them = qWantNo
		}
	}
	if err := n.negotiateBinary(); err != nil {
		return err
	}
	if err := n.negotiateTerminal(); err != nil {
		return err
	}
	if err := n.negotiateLinemode(); err != nil {
		return err
	}
	if n.Negotiated() {
		n.pending = nil
	}
	return nil
}

func (n *Negotiator) negotiateBinary() error {
	if n.binary == PhaseAfter {
		return nil
	}
	o := n.opts.get(TransmitBinary)
	if o.us == qNo || o.them == qNo {
		return incompatible("binary transmission required")
	}
	if o.us == qYes && o.them == qYes {
		n.binary = PhaseAfter
	}
	return nil
}

func (n *Negotiator) negotiateTerminal() error {
	if n.terminal == PhaseAfter {
		return nil
	}
	o := n.opts.get(TerminalType)
	if o.them == qNo {
		return incompatible("terminal type required")
	}
	if n.terminal == PhaseBefore && o.them == qYes {
		n.requestTerminalType()
		n.terminal = PhaseDuring
	}
	if n.terminal == PhaseDuring {
		for _, name := range n.take(TerminalType, TerminalTypeIs) {
			if terminalAllowed(name) {
				n.terminal = PhaseAfter
				return nil
			}
			if bytes.Equal(name, n.offered) && n.offered != nil {
				return incompatible("terminal type in allow-list required")
			}
			n.offered = slices.Clone(name)
			n.requestTerminalType()
		}
	}
	return nil
}

func (n *Negotiator) negotiateLinemode() error {
	if n.linemode == PhaseAfter {
		return nil
	}
	o := n.opts.get(Linemode)
	if n.linemode == PhaseBefore {
		switch o.them {
		case qNo:
			// Linemode is best effort; a client that refuses it still gets in.
			n.linemode = PhaseAfter
			return nil
		case qYes:
			n.discard(Linemode)
			n.send([]byte{IAC, SB, Linemode, LinemodeMode, LinemodeEdit | LinemodeTrapsig, IAC, SE})
			n.send([]byte{IAC, SB, Linemode, DONT, LinemodeFlow, IAC, SE})
			n.linemode = PhaseDuring
		}
	}
	if n.linemode == PhaseDuring {
		for _, data := range n.take(Linemode, LinemodeMode) {
			var mask byte
			if len(data) > 0 {
				mask = data[0]
			}
			if mask != LinemodeEdit|LinemodeTrapsig|LinemodeModeAck {
				return incompatible("Linemode EDIT + TRAPSIG required")
			}
			n.linemode = PhaseAfter
			return nil
		}
	}
	return nil
}

func (n *Negotiator) requestTerminalType() {
	n.send([]byte{IAC, SB, TerminalType, TerminalTypeSend, IAC, SE})
}

// take removes every pending payload for the given option and verb and
// returns their trailing data, preserving arrival order. Payloads for other
// options stay queued.
func (n *Negotiator) take(opt, verb byte) (result [][]byte) {
	kept := n.pending[:0]
	for _, p := range n.pending {
		if len(p) >= 2 && p[0] == opt && p[1] == verb {
			result = append(result, p[2:])
		} else {
			kept = append(kept, p)
		}
	}
	n.pending = kept
	return
}

func (n *Negotiator) discard(opt byte) {
	n.pending = slices.DeleteFunc(n.pending, func(p []byte) bool {
		return len(p) > 0 && p[0] == opt
	})
}

func terminalAllowed(name []byte) bool {
	for _, want := range allowedTerminals {
		if strings.EqualFold(string(name), want) {
			return true
		}
	}
	return false
}
