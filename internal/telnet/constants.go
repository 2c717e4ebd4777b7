package telnet

// RFC 854 command bytes.
const (
	SE   = 240 + iota // f0
	NOP               // f1
	DM                // f2
	BRK               // f3
	IP                // f4
	AO                // f5
	AYT               // f6
	EC                // f7
	EL                // f8
	GA                // f9
	SB                // fa
	WILL              // fb
	WONT              // fc
	DO                // fd
	DONT              // fe
	IAC               // ff
)

const (
	TransmitBinary = 0  // RFC 856
	TerminalType   = 24 // RFC 1091
	Linemode       = 34 // RFC 1184
)

// RFC 1091 sub-negotiation verbs.
const (
	TerminalTypeIs = 0 + iota
	TerminalTypeSend
)

// RFC 1184 sub-negotiation verbs and MODE mask bits.
const (
	LinemodeMode    = 1
	LinemodeFlow    = 2
	LinemodeEdit    = 1
	LinemodeTrapsig = 2
	LinemodeModeAck = 4
)
