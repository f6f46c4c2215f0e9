// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "#0",
}

// Assembler is a two pass assembler for LC-3 assembly language. The first
// pass encodes each line, recording labels and leaving label references
// unresolved; the second pass links the references.
type Assembler struct {
	Verbose    bool        // If set, verbosely logs the assembler actions.
	Statements []Statement // List of generated statements.

	predefine map[string]string // Predefines
	Symbol    map[string]uint16 // Map of labels to addresses.
	Equate    map[string]string // Map of equates.

	origin    uint16
	hasOrigin bool
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// brMap maps the branch mnemonics to their condition masks.
var brMap = map[string]Flag{
	"BR":    FLAG_N | FLAG_Z | FLAG_P,
	"BRN":   FLAG_N,
	"BRZ":   FLAG_Z,
	"BRP":   FLAG_P,
	"BRNZ":  FLAG_N | FLAG_Z,
	"BRNP":  FLAG_N | FLAG_P,
	"BRZP":  FLAG_Z | FLAG_P,
	"BRNZP": FLAG_N | FLAG_Z | FLAG_P,
}

// trapMap maps the trap aliases to their vectors.
var trapMap = map[string]TrapVector{
	"GETC":  TRAP_GETC,
	"OUT":   TRAP_OUT,
	"PUTS":  TRAP_PUTS,
	"IN":    TRAP_IN,
	"PUTSP": TRAP_PUTSP,
	"HALT":  TRAP_HALT,
}

// opMap maps the remaining mnemonics to their opcodes.
var opMap = map[string]Opcode{
	"ADD":  OP_ADD,
	"AND":  OP_AND,
	"NOT":  OP_NOT,
	"JMP":  OP_JMP,
	"RET":  OP_JMP,
	"JSR":  OP_JSR,
	"JSRR": OP_JSR,
	"LD":   OP_LD,
	"LDI":  OP_LDI,
	"LDR":  OP_LDR,
	"LEA":  OP_LEA,
	"ST":   OP_ST,
	"STI":  OP_STI,
	"STR":  OP_STR,
	"TRAP": OP_TRAP,
	"RTI":  OP_RTI,
	"NOP":  OP_BR,
}

// isMnemonic returns true if word is an instruction or directive.
func isMnemonic(word string) bool {
	upper := strings.ToUpper(word)
	if strings.HasPrefix(upper, ".") {
		return true
	}
	if _, ok := brMap[upper]; ok {
		return true
	}
	if _, ok := trapMap[upper]; ok {
		return true
	}
	_, ok := opMap[upper]
	return ok
}

// valueOf returns the value of a numeric literal: #decimal, xHEX, 0xHEX,
// bBINARY, a plain decimal, or a 'c' character.
func (asm *Assembler) valueOf(word string) (value int, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	var v64 int64
	switch {
	case word[0] == '\'':
		var str string
		str, err = unquote(word)
		if err != nil || len(str) != 1 {
			err = ErrParseNumber(word)
			return
		}
		value = int(str[0])
		return
	case word[0] == '#':
		v64, err = strconv.ParseInt(word[1:], 10, 32)
	case len(word) > 2 && (word[:2] == "0x" || word[:2] == "0X"):
		v64, err = strconv.ParseInt(word[2:], 16, 32)
	case word[0] == 'x' || word[0] == 'X':
		v64, err = strconv.ParseInt(word[1:], 16, 32)
	case word[0] == 'b' || word[0] == 'B':
		v64, err = strconv.ParseInt(word[1:], 2, 32)
	default:
		v64, err = strconv.ParseInt(word, 10, 32)
	}
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int(v64)
	return
}

// isRegister returns true if word names a general purpose register.
func isRegister(word string) bool {
	return len(word) == 2 && (word[0] == 'R' || word[0] == 'r') && word[1] >= '0' && word[1] <= '7'
}

// register returns the index of a register operand.
func (asm *Assembler) register(word string) (r int, err error) {
	if !isRegister(word) {
		err = ErrRegisterInvalid
		return
	}
	r = int(word[1] - '0')
	return
}

// isLabel returns true if word can be used as a label.
func (asm *Assembler) isLabel(word string) bool {
	if len(word) == 0 || isRegister(word) || isMnemonic(word) {
		return false
	}
	if _, err := asm.valueOf(word); err == nil {
		return false
	}
	for n, r := range word {
		switch {
		case r == '_', unicode.IsLetter(r) && r <= unicode.MaxASCII:
		case n > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// fits checks that value can be encoded in a field of 'bits' width, either
// as a signed value or as a raw bit pattern.
func fits(value int, bits int) (field uint16, err error) {
	if value < -(1<<(bits-1)) || value >= (1<<bits) {
		err = ErrOffsetRange{Value: value, Bits: bits}
		return
	}
	field = uint16(value) & ((1 << bits) - 1)
	return
}

// literal returns a numeric operand encoded into a 'bits' wide field.
func (asm *Assembler) literal(word string, bits int) (field uint16, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}
	return fits(value, bits)
}

// target returns either an encoded numeric offset or a label to be linked.
func (asm *Assembler) target(word string, bits int) (field uint16, label string, err error) {
	if asm.isLabel(word) {
		label = word
		return
	}
	field, err = asm.literal(word, bits)
	return
}

// parenEval does compile-time $(...) evaluations, with equates and the
// labels defined so far as predeclared integers.
func (asm *Assembler) parenEval(expr string) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v int
		v, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt(v)
	}
	for key, addr := range asm.Symbol {
		pred[key] = starlark.MakeInt(int(addr))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}

// unquote decodes a single or double quoted string with the escapes
// \n \t \r \e \0 \\ \' and \".
func unquote(word string) (str string, err error) {
	if len(word) < 2 || (word[0] != '"' && word[0] != '\'') || word[len(word)-1] != word[0] {
		err = ErrStringInvalid
		return
	}

	var out strings.Builder
	body := word[1 : len(word)-1]
	for n := 0; n < len(body); n++ {
		ch := body[n]
		if ch != '\\' {
			out.WriteByte(ch)
			continue
		}
		n++
		if n == len(body) {
			err = ErrStringInvalid
			return
		}
		switch body[n] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case 'e':
			out.WriteByte('\033')
		case '0':
			out.WriteByte(0)
		case '\\', '\'', '"':
			out.WriteByte(body[n])
		default:
			err = ErrStringInvalid
			return
		}
	}

	str = out.String()
	return
}

// splitWords splits a line into words at white space and commas, keeping
// quoted strings whole and dropping any ; comment.
func splitWords(line string) (words []string, err error) {
	var word strings.Builder
	var quote rune
	var escaped bool

	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	for _, r := range line {
		if quote != 0 {
			word.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch {
		case r == ';':
			flush()
			return
		case r == '"' || r == '\'':
			quote = r
			word.WriteRune(r)
		case r == ',' || unicode.IsSpace(r):
			flush()
		default:
			word.WriteRune(r)
		}
	}

	if quote != 0 {
		err = ErrStringInvalid
		return
	}

	flush()
	return
}

var reParen = regexp.MustCompile(`\$\([^\$"']*\)`)

// stripComment drops any ; comment from line, and reports which bytes of
// what remains are inside quotes.
func stripComment(line string) (code string, quoted []bool) {
	quoted = make([]bool, len(line))

	var quote byte
	var escaped bool
	for n := 0; n < len(line); n++ {
		ch := line[n]
		if quote != 0 {
			quoted[n] = true
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case ';':
			return line[:n], quoted[:n]
		case '"', '\'':
			quote = ch
			quoted[n] = true
		}
	}

	return line, quoted
}

// parseLine parses a single line into words, evaluating expressions,
// defining equates and labels.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("#%v", lineno)

	line, quoted := stripComment(line)

	// Do $() evaluations, leaving quoted text alone.
	var expanded strings.Builder
	last := 0
	for _, loc := range reParen.FindAllStringIndex(line, -1) {
		if quoted[loc[0]] {
			continue
		}
		var value int
		value, err = asm.parenEval(line[loc[0]+2 : loc[1]-1])
		if err != nil {
			return
		}
		expanded.WriteString(line[last:loc[0]])
		fmt.Fprintf(&expanded, "#%d", value)
		last = loc[1]
	}
	expanded.WriteString(line[last:])
	line = expanded.String()

	words, err = splitWords(line)
	if err != nil || len(words) == 0 {
		return
	}

	// .EQU CONST VALUE
	if strings.EqualFold(words[0], ".EQU") {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	if !isMnemonic(words[0]) {
		label := strings.TrimSuffix(words[0], ":")
		if !asm.isLabel(label) {
			err = ErrLabelInvalid
			return
		}
		_, ok := asm.Symbol[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		if !asm.hasOrigin {
			err = ErrOrigMissing
			return
		}
		asm.Symbol[label] = asm.currentAddress()
		words = words[1:]
	}

	return
}

// currentAddress gets the address of the next generated word.
func (asm *Assembler) currentAddress() uint16 {
	if len(asm.Statements) == 0 {
		return asm.origin
	}

	last := asm.Statements[len(asm.Statements)-1]

	return last.Address + uint16(len(last.Codes))
}

// nextAddress gets the address after the last generated word, as an int
// so that running off the top of memory can be detected.
func (asm *Assembler) nextAddress() int {
	if len(asm.Statements) == 0 {
		return int(asm.origin)
	}

	last := asm.Statements[len(asm.Statements)-1]

	return int(last.Address) + len(last.Codes)
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		var syn *ErrSyntax
		if err != nil && !errors.As(err, &syn) {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Statements = asm.Statements[:0]
	asm.Symbol = make(map[string]uint16)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.origin = 0
	asm.hasOrigin = false

	for scanner.Scan() {
		line = scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, line)
		}

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		var end bool
		end, err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
		if end {
			break
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	// Second pass: link label references.
	for n := range asm.Statements {
		st := &asm.Statements[n]

		if len(st.LinkLabel) == 0 {
			continue
		}

		lineno = st.LineNo
		line = strings.Join(st.Words, " ")

		addr, ok := asm.Symbol[st.LinkLabel]
		if !ok {
			err = ErrLabelMissing(st.LinkLabel)
			return
		}

		if st.LinkBits == 0 {
			st.Codes[0] = Code(addr)
			continue
		}

		// PC relative to the word after the instruction.
		offset := int(addr) - (int(st.Address) + 1)
		if offset < -(1<<(st.LinkBits-1)) || offset >= 1<<(st.LinkBits-1) {
			err = ErrOffsetRange{Value: offset, Bits: st.LinkBits}
			return
		}
		st.Codes[0] |= Code(uint16(offset) & ((1 << st.LinkBits) - 1))
	}

	prog = &Program{
		Origin:     asm.origin,
		Statements: slices.Clone(asm.Statements),
		Symbols:    maps.Clone(asm.Symbol),
	}

	return
}

// want checks the operand count of an instruction.
func want(args []string, count int) (err error) {
	switch {
	case len(args) < count:
		err = ErrOpcodeValueMissing
	case len(args) > count:
		err = ErrOpcodeExtraArgs
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
// Returns end set when .END is reached.
func (asm *Assembler) parseWords(words []string, lineno int) (end bool, err error) {
	var codes []Code
	var label string
	var bits int

	// no-op
	if len(words) == 0 {
		return
	}

	op := strings.ToUpper(words[0])
	args := words[1:]

	switch op {
	case ".END":
		end = true
		return
	case ".ORIG":
		if asm.hasOrigin {
			err = ErrOrigDuplicate
			return
		}
		err = want(args, 1)
		if err != nil {
			return
		}
		var field uint16
		field, err = asm.literal(args[0], 16)
		if err != nil {
			return
		}
		asm.origin = field
		asm.hasOrigin = true
		return
	}

	if !asm.hasOrigin {
		err = ErrOrigMissing
		return
	}

	address := asm.currentAddress()

	defer func() {
		if err != nil || len(codes) == 0 {
			return
		}
		if asm.nextAddress()+len(codes) > MEMORY_SIZE {
			err = ErrAddressOverflow
			return
		}
		st := Statement{LineNo: lineno, Address: address, Words: words, Codes: codes, LinkLabel: label, LinkBits: bits}
		asm.Statements = append(asm.Statements, st)
	}()

	if nzp, ok := brMap[op]; ok {
		err = want(args, 1)
		if err != nil {
			return
		}
		var field uint16
		field, label, err = asm.target(args[0], 9)
		if err != nil {
			return
		}
		bits = 9
		codes = append(codes, MakeCodeBr(nzp, field))
		return
	}

	if vector, ok := trapMap[op]; ok {
		err = want(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeTrap(vector))
		return
	}

	switch op {
	case "ADD", "AND":
		err = want(args, 3)
		if err != nil {
			return
		}
		var dr, sr1 int
		if dr, err = asm.register(args[0]); err != nil {
			return
		}
		if sr1, err = asm.register(args[1]); err != nil {
			return
		}
		if isRegister(args[2]) {
			var sr2 int
			sr2, _ = asm.register(args[2])
			codes = append(codes, MakeCodeAlu(opMap[op], dr, sr1, sr2))
		} else {
			var imm5 uint16
			imm5, err = asm.literal(args[2], 5)
			if err != nil {
				return
			}
			codes = append(codes, MakeCodeAluImm(opMap[op], dr, sr1, imm5))
		}
	case "NOT":
		err = want(args, 2)
		if err != nil {
			return
		}
		var dr, sr int
		if dr, err = asm.register(args[0]); err != nil {
			return
		}
		if sr, err = asm.register(args[1]); err != nil {
			return
		}
		codes = append(codes, MakeCodeNot(dr, sr))
	case "NOP":
		err = want(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeBr(0, 0))
	case "RET":
		err = want(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeJmp(REGISTER_R7))
	case "RTI":
		err = want(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeRti())
	case "JMP", "JSRR":
		err = want(args, 1)
		if err != nil {
			return
		}
		var base int
		if base, err = asm.register(args[0]); err != nil {
			return
		}
		if op == "JMP" {
			codes = append(codes, MakeCodeJmp(base))
		} else {
			codes = append(codes, MakeCodeJsrr(base))
		}
	case "JSR":
		err = want(args, 1)
		if err != nil {
			return
		}
		var field uint16
		field, label, err = asm.target(args[0], 11)
		if err != nil {
			return
		}
		bits = 11
		codes = append(codes, MakeCodeJsr(field))
	case "LD", "LDI", "LEA", "ST", "STI":
		err = want(args, 2)
		if err != nil {
			return
		}
		var r int
		if r, err = asm.register(args[0]); err != nil {
			return
		}
		var field uint16
		field, label, err = asm.target(args[1], 9)
		if err != nil {
			return
		}
		bits = 9
		codes = append(codes, MakeCodePcRelative(opMap[op], r, field))
	case "LDR", "STR":
		err = want(args, 3)
		if err != nil {
			return
		}
		var r, base int
		if r, err = asm.register(args[0]); err != nil {
			return
		}
		if base, err = asm.register(args[1]); err != nil {
			return
		}
		var offset6 uint16
		offset6, err = asm.literal(args[2], 6)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeBaseOffset(opMap[op], r, base, offset6))
	case "TRAP":
		err = want(args, 1)
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if value < 0 || value > 0xff {
			err = ErrOffsetRange{Value: value, Bits: 8}
			return
		}
		codes = append(codes, MakeCodeTrap(TrapVector(value)))
	case ".FILL":
		err = want(args, 1)
		if err != nil {
			return
		}
		var field uint16
		field, label, err = asm.target(args[0], 16)
		if err != nil {
			return
		}
		codes = append(codes, Code(field))
	case ".BLKW":
		if len(args) < 1 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var count int
		count, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if count < 0 || count > MEMORY_SIZE {
			err = ErrOffsetRange{Value: count, Bits: 16}
			return
		}
		var fill uint16
		if len(args) == 2 {
			fill, err = asm.literal(args[1], 16)
			if err != nil {
				return
			}
		}
		codes = make([]Code, count)
		for n := range codes {
			codes[n] = Code(fill)
		}
	case ".STRINGZ":
		err = want(args, 1)
		if err != nil {
			return
		}
		var str string
		str, err = unquote(args[0])
		if err != nil {
			return
		}
		for n := range len(str) {
			codes = append(codes, Code(str[n]))
		}
		codes = append(codes, 0)
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
