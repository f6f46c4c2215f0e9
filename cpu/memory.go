package cpu

import (
	"iter"
)

const (
	MEMORY_SIZE = 1 << 16 // Words of addressable memory.
	PC_START    = 0x3000  // Conventional user program origin.
)

// Memory is the 64K word store. Every 16-bit address is valid.
type Memory struct {
	Data [MEMORY_SIZE]uint16
}

// Read returns the word at addr.
func (mem *Memory) Read(addr uint16) uint16 {
	return mem.Data[addr]
}

// Write sets the word at addr.
func (mem *Memory) Write(addr uint16, value uint16) {
	mem.Data[addr] = value
}

// Reset zeros all of memory.
func (mem *Memory) Reset() {
	clear(mem.Data[:])
}

// LoadImage writes words consecutively starting at origin.
// Returns ErrAddressOverflow, without writing anything, if the words would
// run past the top of memory.
func (mem *Memory) LoadImage(origin uint16, words []uint16) (err error) {
	if int(origin)+len(words) > MEMORY_SIZE {
		err = ErrAddressOverflow
		return
	}

	copy(mem.Data[origin:], words)

	return
}

// LoadImageWrapped writes words consecutively starting at origin, wrapping
// from the top of memory back to address 0.
func (mem *Memory) LoadImageWrapped(origin uint16, words []uint16) (err error) {
	if len(words) > MEMORY_SIZE {
		err = ErrAddressOverflow
		return
	}

	addr := origin
	for _, word := range words {
		mem.Data[addr] = word
		addr++
	}

	return
}

// Region returns an iterator over count words starting at addr, wrapping at
// the top of memory.
func (mem *Memory) Region(addr uint16, count int) iter.Seq2[uint16, uint16] {
	return func(yield func(addr uint16, word uint16) bool) {
		at := addr
		for range count {
			if !yield(at, mem.Data[at]) {
				return
			}
			at++
		}
	}
}
