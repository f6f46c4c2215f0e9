package io

import (
	"io"
)

// Tape provides sequential character I/O over an io.Reader for input and
// an io.Writer for output.
type Tape struct {
	Input  io.Reader
	Output io.Writer

	// Read and Written count the characters transferred.
	Read    int
	Written int
}

var _ Console = (*Tape)(nil)

// GetChar reads the next byte from the input stream.
// Returns io.EOF once the input is exhausted.
func (tc *Tape) GetChar() (ch byte, err error) {
	if tc.Input == nil {
		err = ErrNoInput
		return
	}

	var one [1]byte
	for {
		var n int
		n, err = tc.Input.Read(one[:])
		if n == 1 {
			err = nil
			break
		}
		if err != nil {
			return
		}
	}

	tc.Read++
	ch = one[0]
	return
}

// PutChar writes a byte to the output stream.
func (tc *Tape) PutChar(ch byte) (err error) {
	if tc.Output == nil {
		err = ErrNoOutput
		return
	}

	_, err = tc.Output.Write([]byte{ch})
	if err != nil {
		return
	}

	tc.Written++
	return
}
