package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionStateReceive(t *testing.T) {
	var tests = []struct {
		cmd   byte
		start optionState
		end   optionState
	}{
		{DO, optionState{us: qNo}, optionState{us: qYes}},
		{DO, optionState{us: qWantNo}, optionState{us: qWantNo}},
		{DO, optionState{us: qWantNoOpposite}, optionState{us: qYes}},
		{DO, optionState{us: qYes}, optionState{us: qYes}},
		{DO, optionState{us: qWantYes}, optionState{us: qYes}},
		{DO, optionState{us: qWantYesOpposite}, optionState{us: qWantNo}},

		{DONT, optionState{us: qNo}, optionState{us: qNo}},
		{DONT, optionState{us: qWantNo}, optionState{us: qNo}},
		{DONT, optionState{us: qWantNoOpposite}, optionState{us: qWantYes}},
		{DONT, optionState{us: qYes}, optionState{us: qNo}},
		{DONT, optionState{us: qWantYes}, optionState{us: qNo}},
		{DONT, optionState{us: qWantYesOpposite}, optionState{us: qNo}},

		{WILL, optionState{them: qNo}, optionState{them: qYes}},
		{WILL, optionState{them: qWantNo}, optionState{them: qWantNo}},
		{WILL, optionState{them: qWantNoOpposite}, optionState{them: qYes}},
		{WILL, optionState{them: qYes}, optionState{them: qYes}},
		{WILL, optionState{them: qWantYes}, optionState{them: qYes}},
		{WILL, optionState{them: qWantYesOpposite}, optionState{them: qWantNo}},

		{WONT, optionState{them: qNo}, optionState{them: qNo}},
		{WONT, optionState{them: qWantNo}, optionState{them: qNo}},
		{WONT, optionState{them: qWantNoOpposite}, optionState{them: qWantYes}},
		{WONT, optionState{them: qYes}, optionState{them: qNo}},
		{WONT, optionState{them: qWantYes}, optionState{them: qNo}},
		{WONT, optionState{them: qWantYesOpposite}, optionState{them: qNo}},
	}

	for i, test := range tests {
		state := test.start
		state.opt = TerminalType
		expected := test.end
		expected.opt = TerminalType
		state.receive(test.cmd)
		require.Equal(t, expected, state, i)
	}
}

func TestOptionMapTracksRequiredOptions(t *testing.T) {
	m := newOptionMap()
	for _, opt := range []byte{TransmitBinary, TerminalType, Linemode} {
		require.Contains(t, m.m, opt)
	}
	require.Len(t, m.m, 3)
}

func TestOptionMapCreatesOnDemand(t *testing.T) {
	m := newOptionMap()
	const echo = 1
	o := m.get(echo)
	require.Equal(t, &optionState{opt: echo}, o)
	require.Same(t, o, m.get(echo))
}
