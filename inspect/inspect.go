// Package inspect renders the machine state as a Graphviz graph, using
// github.com/bradleyjkemp/memviz.
package inspect

import (
	"io"

	"github.com/bradleyjkemp/memviz"

	"github.com/ezrec/lc3/cpu"
)

// Words of memory drawn around the program counter.
const NEAR_WORDS = 8

// Word is a memory location near the program counter.
type Word struct {
	Address uint16
	Value   uint16
	Instr   string
}

// State is the part of a Cpu worth drawing. Only the memory around the
// program counter is kept; 64K words do not make a readable graph.
type State struct {
	Registers cpu.Registers
	Signal    cpu.Signal
	Ticks     int
	Instr     string      // Disassembly of the last fetched instruction.
	Memory    []Word      // NEAR_WORDS words, starting half of them before PC.
	Events    []cpu.Event // Most recent trace events, oldest first.
}

// Snapshot copies the state of c, keeping at most 'events' trace events.
func Snapshot(c *cpu.Cpu, events int) (st *State) {
	st = &State{
		Registers: c.Registers,
		Signal:    c.Signal,
		Ticks:     c.Ticks,
	}

	if c.Signal.HasInstr {
		st.Instr = cpu.Code(c.Signal.Instr).String()
	}

	start := c.Registers.Pc - NEAR_WORDS/2
	for addr, value := range c.Memory.Region(start, NEAR_WORDS) {
		st.Memory = append(st.Memory, Word{
			Address: addr,
			Value:   value,
			Instr:   cpu.Disassemble(addr, cpu.Code(value)),
		})
	}

	all := c.Trace.Events()
	if len(all) > events {
		all = all[len(all)-events:]
	}
	st.Events = all

	return
}

// Write writes the state as a Graphviz dot graph.
func (st *State) Write(w io.Writer) {
	memviz.Map(w, st)
}
