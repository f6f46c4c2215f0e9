package cpu

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Statement is a line of assembled source with the words it generated.
type Statement struct {
	LineNo    int      // Source line number.
	Address   uint16   // Address of the first generated word.
	Words     []string // Source words, after label and equate processing.
	Codes     []Code   // Generated words.
	LinkLabel string   // Label to resolve into Codes[0], if any.
	LinkBits  int      // Width of the PC relative field, or 0 for an absolute address.
}

// Program is the output of the assembler: the symbol table and the code.
type Program struct {
	Origin     uint16
	Statements []Statement
	Symbols    map[string]uint16
}

type Debug struct {
	*Statement
	Index int
}

// Debug returns the statement that generated the word at addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, st := range prog.Statements {
		if int(addr) >= int(st.Address) && int(addr) < int(st.Address)+len(st.Codes) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr - st.Address),
			}
			break
		}
	}

	return
}

// LineNo returns the source line of the word at addr, or 0 if unknown.
func (prog *Program) LineNo(addr uint16) int {
	dbg := prog.Debug(addr)
	if dbg.Statement == nil {
		return 0
	}
	return dbg.LineNo
}

// Codes returns an iterator over every generated word and its address.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, st := range prog.Statements {
			for n, code := range st.Codes {
				if !yield(st.Address+uint16(n), code) {
					return
				}
			}
		}
	}
}

// Image returns the program as a flat memory image.
func (prog *Program) Image() (img *Image) {
	img = &Image{Origin: prog.Origin}
	for _, code := range prog.Codes() {
		img.Words = append(img.Words, uint16(code))
	}
	return
}

// Binary returns the program in its on-disk image form.
func (prog *Program) Binary() []byte {
	return prog.Image().Bytes()
}

// SymbolTable renders the symbol table, ordered by address.
func (prog *Program) SymbolTable() string {
	var text strings.Builder

	text.WriteString("// Symbol table\n")
	text.WriteString("// Scope level 0:\n")
	text.WriteString("//\tSymbol Name       Page Address\n")
	text.WriteString("//\t----------------  ------------\n")

	names := slices.SortedFunc(maps.Keys(prog.Symbols), func(a, b string) int {
		return cmp.Or(cmp.Compare(prog.Symbols[a], prog.Symbols[b]), strings.Compare(a, b))
	})
	for _, name := range names {
		text.WriteString(fmt.Sprintf("//\t%-16s  %X\n", name, prog.Symbols[name]))
	}

	return text.String()
}
