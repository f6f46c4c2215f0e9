package io

import (
	"errors"
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// ASCII control characters handled by the terminal.
const (
	CHAR_INTERRUPT = 0x03 // ^C
	CHAR_RETURN    = '\r'
	CHAR_NEWLINE   = '\n'
)

// Terminal is a Console on a POSIX terminal. Each GetChar puts the terminal
// in raw mode for the duration of the read, so the program sees single key
// presses without line editing or echo.
type Terminal struct {
	input  *os.File
	output *os.File

	canAttr unix.Termios
	rawAttr unix.Termios
}

var _ Console = (*Terminal)(nil)

// NewTerminal prepares a Terminal on the given files. The input file must
// be a terminal.
func NewTerminal(input, output *os.File) (pt *Terminal, err error) {
	pt = &Terminal{
		input:  input,
		output: output,
	}

	err = termios.Tcgetattr(pt.input.Fd(), &pt.canAttr)
	if err != nil {
		err = errors.Join(ErrNotTTY, err)
		return
	}

	pt.rawAttr = pt.canAttr
	termios.Cfmakeraw(&pt.rawAttr)
	pt.rawAttr.Cc[unix.VMIN] = 1
	pt.rawAttr.Cc[unix.VTIME] = 0

	return
}

// Restore puts the terminal back in canonical mode.
func (pt *Terminal) Restore() error {
	return termios.Tcsetattr(pt.input.Fd(), termios.TCSANOW, &pt.canAttr)
}

// GetChar reads one key press. A carriage return is delivered as a newline;
// ^C returns ErrInterrupt.
func (pt *Terminal) GetChar() (ch byte, err error) {
	err = termios.Tcsetattr(pt.input.Fd(), termios.TCSANOW, &pt.rawAttr)
	if err != nil {
		return
	}
	defer func() {
		rerr := pt.Restore()
		if err == nil {
			err = rerr
		}
	}()

	var one [1]byte
	_, err = pt.input.Read(one[:])
	if err != nil {
		return
	}

	ch = one[0]
	switch ch {
	case CHAR_INTERRUPT:
		err = ErrInterrupt
	case CHAR_RETURN:
		ch = CHAR_NEWLINE
	}

	return
}

// PutChar writes a character to the terminal.
func (pt *Terminal) PutChar(ch byte) (err error) {
	_, err = pt.output.Write([]byte{ch})
	return
}
