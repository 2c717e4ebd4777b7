package telnet

// qState is one side of an RFC 1143 option negotiation.
type qState int

const (
	qNo qState = 0 + iota
	qYes
	qWantNo
	qWantNoOpposite
	qWantYes
	qWantYesOpposite
)

func (q qState) String() string {
	switch q {
	case qNo:
		return "no"
	case qYes:
		return "yes"
	case qWantNo:
		return "want-no"
	case qWantNoOpposite:
		return "want-no-opposite"
	case qWantYes:
		return "want-yes"
	case qWantYesOpposite:
		return "want-yes-opposite"
	}
	return "invalid"
}

// receivePositive applies a DO or WILL to one side of the state machine.
func (q qState) receivePositive() qState {
	switch q {
	case qNo:
		return qYes
	case qWantNo:
		return qWantNo
	case qWantNoOpposite:
		return qYes
	case qYes:
		return qYes
	case qWantYes:
		return qYes
	case qWantYesOpposite:
		return qWantNo
	}
	return q
}

// receiveNegative applies a DONT or WONT to one side of the state machine.
func (q qState) receiveNegative() qState {
	switch q {
	case qWantNoOpposite:
		return qWantYes
	default:
		return qNo
	}
}

// optionState tracks both sides of one option code. DO/DONT from the peer
// steer us, WILL/WONT steer them.
type optionState struct {
	opt  byte
	us   qState
	them qState
}

func (o *optionState) receive(cmd byte) {
	var state *qState
	switch cmd {
	case DO, DONT:
		state = &o.us
	case WILL, WONT:
		state = &o.them
	default:
		return
	}
	switch cmd {
	case DO, WILL:
		*state = state.receivePositive()
	case DONT, WONT:
		*state = state.receiveNegative()
	}
}

// optionMap holds negotiation state per option code. Tracked options are
// present from the start; anything else springs into existence at (No, No)
// the first time the peer mentions it.
type optionMap struct {
	m map[byte]*optionState
}

func newOptionMap() *optionMap {
	result := &optionMap{m: make(map[byte]*optionState)}
	for _, opt := range []byte{TransmitBinary, TerminalType, Linemode} {
		result.m[opt] = &optionState{opt: opt}
	}
	return result
}

func (m *optionMap) get(opt byte) *optionState {
	o, ok := m.m[opt]
	if !ok {
		o = &optionState{opt: opt}
		m.m[opt] = o
	}
	return o
}
