package station

import (
	"log/slog"
	"unicode"
)

// Command is one operator action.
type Command int

const (
	CmdQuit Command = iota
	CmdPauseToggle
	CmdSkip
	CmdBanish
	CmdFlag
	CmdPromote
)

func (c Command) String() string {
	switch c {
	case CmdQuit:
		return "quit"
	case CmdPauseToggle:
		return "pause"
	case CmdSkip:
		return "skip"
	case CmdBanish:
		return "banish"
	case CmdFlag:
		return "flag"
	case CmdPromote:
		return "promote"
	}
	return "unknown"
}

// FromKey maps an operator keypress to a command. Unknown keys are ignored.
func FromKey(r rune) (Command, bool) {
	switch unicode.ToLower(r) {
	case 'q':
		return CmdQuit, true
	case 'p':
		return CmdPauseToggle, true
	case 's':
		return CmdSkip, true
	case 'b':
		return CmdBanish, true
	case 'f':
		return CmdFlag, true
	case 'r':
		return CmdPromote, true
	}
	return 0, false
}

// Ingress is the bounded, non-blocking command channel between the operator's
// key loop and the controller.
type Ingress struct {
	ch chan Command
}

// NewIngress creates an ingress with the given buffer size.
func NewIngress(buffer int) *Ingress {
	if buffer <= 0 {
		buffer = 16
	}
	return &Ingress{ch: make(chan Command, buffer)}
}

// Send delivers a command without ever blocking the caller. When the buffer
// is full the oldest pending command is dropped with a warning.
func (i *Ingress) Send(cmd Command) {
	for {
		select {
		case i.ch <- cmd:
			return
		default:
		}
		select {
		case dropped := <-i.ch:
			slog.Warn("command buffer full, dropping oldest", "dropped", dropped.String())
		default:
		}
	}
}

// Commands is the controller's receive side.
func (i *Ingress) Commands() <-chan Command {
	return i.ch
}
