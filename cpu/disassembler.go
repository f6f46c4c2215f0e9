package cpu

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
)

// Disassemble returns the assembly language for the instruction at addr,
// with PC relative targets shown as absolute addresses.
func Disassemble(addr uint16, code Code) string {
	return code.format(func(offset uint16) string {
		return fmt.Sprintf("x%04X", addr+1+offset)
	})
}

// Disassembler writes listings of memory images.
type Disassembler struct {
	Symbols map[string]uint16 // Optional labels, used in place of addresses.

	labels map[uint16]string
}

// label returns the symbol at addr, if any.
func (dis *Disassembler) label(addr uint16) (name string, ok bool) {
	if dis.labels == nil {
		dis.labels = make(map[uint16]string, len(dis.Symbols))
		// Sorted so the first name wins when two labels share an address.
		for _, sym := range slices.Sorted(maps.Keys(dis.Symbols)) {
			if _, dup := dis.labels[dis.Symbols[sym]]; !dup {
				dis.labels[dis.Symbols[sym]] = sym
			}
		}
	}
	name, ok = dis.labels[addr]
	return
}

// Line returns one listing line for the word at addr: the address, the raw
// word, the instruction and, for words in the byte range, the character.
func (dis *Disassembler) Line(addr uint16, word uint16) string {
	code := Code(word)
	text := code.format(func(offset uint16) string {
		target := addr + 1 + offset
		if name, ok := dis.label(target); ok {
			return name
		}
		return fmt.Sprintf("x%04X", target)
	})

	name, _ := dis.label(addr)

	line := fmt.Sprintf("x%04X: x%04X  %-12s %v", addr, word, name, text)
	if word < 256 {
		line += "  ; " + strconv.QuoteRune(rune(word))
	}

	return line
}

// Write writes the listing of img to w.
func (dis *Disassembler) Write(w io.Writer, img *Image) (err error) {
	for n, word := range img.Words {
		_, err = fmt.Fprintln(w, dis.Line(img.Origin+uint16(n), word))
		if err != nil {
			return
		}
	}
	return
}
