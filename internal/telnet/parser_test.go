package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() (*Parser, *sendRecorder) {
	r := &sendRecorder{}
	neg := NewNegotiator(r.send)
	return NewParser(neg, r.send), r
}

func lines(ss ...string) (result [][]byte) {
	for _, s := range ss {
		result = append(result, []byte(s))
	}
	return
}

func TestParseLines(t *testing.T) {
	p, _ := newTestParser()

	got, err := p.Parse([]byte("test data\r\nanother\r\nincomplete"))
	require.NoError(t, err)
	require.Equal(t, lines("test data\r\n", "another\r\n"), got)
	require.Equal(t, []byte("incomplete"), p.line)

	got, err = p.Parse([]byte("\r\n"))
	require.NoError(t, err)
	require.Equal(t, lines("incomplete\r\n"), got)
	require.Empty(t, p.line)
}

func TestParseEmptyInput(t *testing.T) {
	p, _ := newTestParser()
	_, err := p.Parse([]byte("partial"))
	require.NoError(t, err)

	got, err := p.Parse(nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, []byte("partial"), p.line)
}

func TestParseIncompleteCommand(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte{IAC, DO})
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, stateCommand, p.state)

	// The option byte can arrive in a later buffer.
	_, err = p.Parse([]byte{TransmitBinary})
	require.NoError(t, err)
	require.Equal(t, stateData, p.state)
	require.Equal(t, qYes, p.neg.opts.get(TransmitBinary).us)
}

func TestParseBareLF(t *testing.T) {
	p, r := newTestParser()
	got, err := p.Parse([]byte("foo\n"))
	require.NoError(t, err)
	require.Equal(t, lines("foo\r\n"), got)
	require.Equal(t, [][]byte{{'\r'}}, r.sent)
}

func TestParseCRLFPairAcrossCalls(t *testing.T) {
	p, r := newTestParser()
	got, err := p.Parse([]byte("foo\r"))
	require.NoError(t, err)
	require.Equal(t, lines("foo\r\n"), got)

	// The LF half of the pair is already accounted for.
	got, err = p.Parse([]byte("\nbar\r\n"))
	require.NoError(t, err)
	require.Equal(t, lines("bar\r\n"), got)
	require.Empty(t, r.sent)
}

func TestParseBackspace(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte("abcd\b\b\r\n"))
	require.NoError(t, err)
	require.Equal(t, lines("ab\r\n"), got)
}

func TestParseDropsControlBytes(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte("a\x01\x02b\ttab\r\n"))
	require.NoError(t, err)
	require.Equal(t, lines("ab\ttab\r\n"), got)
}

func TestParseInterrupt(t *testing.T) {
	var tests = [][]byte{
		[]byte("ab\x03"),
		{IAC, IP},
		{IAC, BRK},
	}
	for i, input := range tests {
		p, _ := newTestParser()
		_, err := p.Parse(input)
		require.ErrorIs(t, err, ErrInterrupt, i)
	}
}

func TestParseSubnegotiation(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte{'h', IAC, SB, TerminalType, TerminalTypeIs, 'x', IAC, SE, 'i', '\r'})
	require.NoError(t, err)
	require.Equal(t, lines("hi\r\n"), got)
	require.Equal(t, [][]byte{{TerminalType, TerminalTypeIs, 'x'}}, p.neg.pending)
}

func TestParseSubnegotiationAcrossCalls(t *testing.T) {
	p, _ := newTestParser()
	for _, chunk := range [][]byte{
		{IAC, SB, Linemode},
		{LinemodeMode, 7},
		{IAC},
		{SE},
	} {
		got, err := p.Parse(chunk)
		require.NoError(t, err)
		require.Empty(t, got)
	}
	require.Equal(t, [][]byte{{Linemode, LinemodeMode, 7}}, p.neg.pending)
}

func TestParseUnknownCommandDropped(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte{'a', IAC, NOP, 'b', '\r', '\n'})
	require.NoError(t, err)
	require.Equal(t, lines("ab\r\n"), got)
}

func TestParseSplitReassembly(t *testing.T) {
	input := []byte("hello world\r\nsecond line\nthird\r\n")

	whole, err := newParserOnly().Parse(input)
	require.NoError(t, err)

	for split := 0; split <= len(input); split++ {
		p := newParserOnly()
		first, err := p.Parse(input[:split])
		require.NoError(t, err, split)
		second, err := p.Parse(input[split:])
		require.NoError(t, err, split)
		assert.Equal(t, whole, append(first, second...), split)
	}
}

func newParserOnly() *Parser {
	p, _ := newTestParser()
	return p
}

func TestParseScrubsInvalidUTF8(t *testing.T) {
	p, _ := newTestParser()
	got, err := p.Parse([]byte{'a', 0xc3, 0x28, 'b', '\r', '\n'})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a�(b\r\n", string(got[0]))
}
