package cpu

import (
	"fmt"
)

const (
	REGISTER_COUNT = 8 // General purpose registers.
	REGISTER_R7    = 7 // Link register for JSR, JSRR.
)

// Registers is the register file: R0-R7, the program counter, and the
// condition flag. It holds state only; callers emit the trace events.
type Registers struct {
	R    [REGISTER_COUNT]uint16 // General purpose registers.
	Pc   uint16                 // Program counter.
	Cond Flag                   // Condition flag, zero until first written.
}

// Get returns the value of register r.
func (rf *Registers) Get(r int) uint16 {
	return rf.R[r]
}

// Set sets the value of register r.
func (rf *Registers) Set(r int, value uint16) {
	rf.R[r] = value
}

// SetFlags recomputes the condition flag from result.
func (rf *Registers) SetFlags(result uint16) Flag {
	rf.Cond = SignCategory(result)
	return rf.Cond
}

// Reset zeros all registers and flags.
func (rf *Registers) Reset() {
	*rf = Registers{}
}

// Values returns the registers as R0-R7, PC, COND.
func (rf *Registers) Values() (values [REGISTER_COUNT + 2]uint16) {
	copy(values[:], rf.R[:])
	values[REGISTER_COUNT] = rf.Pc
	values[REGISTER_COUNT+1] = uint16(rf.Cond)
	return
}

// String returns the register file as text, one register per line.
func (rf *Registers) String() (text string) {
	for n, val := range rf.R {
		text += fmt.Sprintf("% 5s: x%04X\n", fmt.Sprintf("r%d", n), val)
	}
	text += fmt.Sprintf("% 5s: x%04X\n", "pc", rf.Pc)
	text += fmt.Sprintf("% 5s: %v\n", "cond", rf.Cond)
	return
}
