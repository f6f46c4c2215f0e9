// Package io provides the character consoles used by the LC-3 trap
// routines. A Console is a byte-at-a-time input and output stream: Tape
// wraps any io.Reader and io.Writer pair, Terminal drives a POSIX terminal
// in raw mode so single key presses reach the emulated program.
package io

// Console defines the interface for the LC-3 keyboard and display.
// Both calls may block; neither is retried by the caller.
type Console interface {
	// GetChar reads a single character.
	GetChar() (ch byte, err error)
	// PutChar writes a single character.
	PutChar(ch byte) error
}
