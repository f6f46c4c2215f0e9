package cpu

import (
	"fmt"
)

// Opcode is the instruction class held in bits 15-12 of an instruction.
type Opcode int

const (
	OP_BR   = Opcode(0x0) // BR
	OP_ADD  = Opcode(0x1) // ADD
	OP_LD   = Opcode(0x2) // LD
	OP_ST   = Opcode(0x3) // ST
	OP_JSR  = Opcode(0x4) // JSR
	OP_AND  = Opcode(0x5) // AND
	OP_LDR  = Opcode(0x6) // LDR
	OP_STR  = Opcode(0x7) // STR
	OP_RTI  = Opcode(0x8) // RTI
	OP_NOT  = Opcode(0x9) // NOT
	OP_LDI  = Opcode(0xa) // LDI
	OP_STI  = Opcode(0xb) // STI
	OP_JMP  = Opcode(0xc) // JMP
	OP_RES  = Opcode(0xd) // RES
	OP_LEA  = Opcode(0xe) // LEA
	OP_TRAP = Opcode(0xf) // TRAP
)

var opcodeName = [16]string{
	"BR", "ADD", "LD", "ST", "JSR", "AND", "LDR", "STR",
	"RTI", "NOT", "LDI", "STI", "JMP", "RES", "LEA", "TRAP",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opcodeName) {
		return fmt.Sprintf("Opcode(%d)", int(op))
	}
	return opcodeName[op]
}

// TrapVector is the service routine number in the low byte of a TRAP.
type TrapVector uint8

const (
	TRAP_GETC  = TrapVector(0x20) // GETC
	TRAP_OUT   = TrapVector(0x21) // OUT
	TRAP_PUTS  = TrapVector(0x22) // PUTS
	TRAP_IN    = TrapVector(0x23) // IN
	TRAP_PUTSP = TrapVector(0x24) // PUTSP
	TRAP_HALT  = TrapVector(0x25) // HALT
)

var trapName = map[TrapVector]string{
	TRAP_GETC:  "GETC",
	TRAP_OUT:   "OUT",
	TRAP_PUTS:  "PUTS",
	TRAP_IN:    "IN",
	TRAP_PUTSP: "PUTSP",
	TRAP_HALT:  "HALT",
}

func (tv TrapVector) String() string {
	name, ok := trapName[tv]
	if !ok {
		return fmt.Sprintf("TRAP x%02X", uint8(tv))
	}
	return name
}

// Code is a single LC-3 instruction word.
type Code uint16

// makeCode places an opcode in the top four bits of a word.
func makeCode(op Opcode, bits uint16) Code {
	return Code((uint16(op) << 12) | (bits & 0x0fff))
}

// MakeCodeAlu creates a register mode ADD or AND.
func MakeCodeAlu(op Opcode, dr, sr1, sr2 int) Code {
	return makeCode(op, uint16(dr&7)<<9|uint16(sr1&7)<<6|uint16(sr2&7))
}

// MakeCodeAluImm creates an immediate mode ADD or AND.
func MakeCodeAluImm(op Opcode, dr, sr1 int, imm5 uint16) Code {
	return makeCode(op, uint16(dr&7)<<9|uint16(sr1&7)<<6|1<<5|(imm5&0x1f))
}

// MakeCodeNot creates a NOT.
func MakeCodeNot(dr, sr int) Code {
	return makeCode(OP_NOT, uint16(dr&7)<<9|uint16(sr&7)<<6|0x3f)
}

// MakeCodeBr creates a conditional branch.
func MakeCodeBr(nzp Flag, offset9 uint16) Code {
	return makeCode(OP_BR, uint16(nzp&7)<<9|(offset9&0x1ff))
}

// MakeCodePcRelative creates LD, LDI, LEA, ST or STI.
func MakeCodePcRelative(op Opcode, r int, offset9 uint16) Code {
	return makeCode(op, uint16(r&7)<<9|(offset9&0x1ff))
}

// MakeCodeBaseOffset creates LDR or STR.
func MakeCodeBaseOffset(op Opcode, r, base int, offset6 uint16) Code {
	return makeCode(op, uint16(r&7)<<9|uint16(base&7)<<6|(offset6&0x3f))
}

// MakeCodeJmp creates a JMP (RET when base is R7).
func MakeCodeJmp(base int) Code {
	return makeCode(OP_JMP, uint16(base&7)<<6)
}

// MakeCodeJsr creates a PC relative JSR.
func MakeCodeJsr(offset11 uint16) Code {
	return makeCode(OP_JSR, 1<<11|(offset11&0x7ff))
}

// MakeCodeJsrr creates a register JSRR.
func MakeCodeJsrr(base int) Code {
	return makeCode(OP_JSR, uint16(base&7)<<6)
}

// MakeCodeTrap creates a TRAP.
func MakeCodeTrap(vector TrapVector) Code {
	return makeCode(OP_TRAP, uint16(vector))
}

// MakeCodeRti creates an RTI.
func MakeCodeRti() Code {
	return makeCode(OP_RTI, 0)
}

// Opcode returns the instruction class.
func (code Code) Opcode() Opcode {
	return Opcode(code >> 12)
}

// Dr returns the destination (or ST source) register, bits 11-9.
func (code Code) Dr() int {
	return int((code >> 9) & 0x7)
}

// Sr1 returns the first source (or base) register, bits 8-6.
func (code Code) Sr1() int {
	return int((code >> 6) & 0x7)
}

// Sr2 returns the second source register, bits 2-0.
func (code Code) Sr2() int {
	return int(code & 0x7)
}

// ImmFlag is set for the immediate form of ADD and AND.
func (code Code) ImmFlag() bool {
	return (code>>5)&1 != 0
}

// LongFlag is set for JSR, clear for JSRR.
func (code Code) LongFlag() bool {
	return (code>>11)&1 != 0
}

// Nzp returns the branch condition mask.
func (code Code) Nzp() Flag {
	return Flag((code >> 9) & 0x7)
}

// Imm5 returns the sign extended immediate of ADD and AND.
func (code Code) Imm5() uint16 {
	return SignExtend(uint16(code), 5)
}

// Offset6 returns the sign extended offset of LDR and STR.
func (code Code) Offset6() uint16 {
	return SignExtend(uint16(code), 6)
}

// PcOffset9 returns the sign extended offset of BR, LD, LDI, LEA, ST, STI.
func (code Code) PcOffset9() uint16 {
	return SignExtend(uint16(code), 9)
}

// PcOffset11 returns the sign extended offset of JSR.
func (code Code) PcOffset11() uint16 {
	return SignExtend(uint16(code), 11)
}

// TrapVector returns the vector of a TRAP.
func (code Code) TrapVector() TrapVector {
	return TrapVector(code & 0xff)
}

// String returns the assembly language representation of this instruction,
// with PC relative offsets shown as signed displacements.
func (code Code) String() string {
	return code.format(func(offset uint16) string {
		return fmt.Sprintf("#%d", int16(offset))
	})
}

// format renders the instruction, using target to render PC relative
// offsets.
func (code Code) format(target func(offset uint16) string) (out string) {
	op := code.Opcode()

	switch op {
	case OP_ADD, OP_AND:
		if code.ImmFlag() {
			out = fmt.Sprintf("%v R%d, R%d, #%d", op, code.Dr(), code.Sr1(), int16(code.Imm5()))
		} else {
			out = fmt.Sprintf("%v R%d, R%d, R%d", op, code.Dr(), code.Sr1(), code.Sr2())
		}
	case OP_NOT:
		out = fmt.Sprintf("NOT R%d, R%d", code.Dr(), code.Sr1())
	case OP_BR:
		nzp := code.Nzp()
		switch nzp {
		case 0:
			if code.PcOffset9() == 0 {
				out = "NOP"
			} else {
				out = fmt.Sprintf(".FILL x%04X", uint16(code))
			}
		case FLAG_N | FLAG_Z | FLAG_P:
			out = fmt.Sprintf("BR %v", target(code.PcOffset9()))
		default:
			out = fmt.Sprintf("BR%v %v", nzp, target(code.PcOffset9()))
		}
	case OP_JMP:
		if code.Sr1() == REGISTER_R7 {
			out = "RET"
		} else {
			out = fmt.Sprintf("JMP R%d", code.Sr1())
		}
	case OP_JSR:
		if code.LongFlag() {
			out = fmt.Sprintf("JSR %v", target(code.PcOffset11()))
		} else {
			out = fmt.Sprintf("JSRR R%d", code.Sr1())
		}
	case OP_LD, OP_LDI, OP_LEA, OP_ST, OP_STI:
		out = fmt.Sprintf("%v R%d, %v", op, code.Dr(), target(code.PcOffset9()))
	case OP_LDR, OP_STR:
		out = fmt.Sprintf("%v R%d, R%d, #%d", op, code.Dr(), code.Sr1(), int16(code.Offset6()))
	case OP_TRAP:
		out = code.TrapVector().String()
	case OP_RTI:
		if code == MakeCodeRti() {
			out = "RTI"
		} else {
			out = fmt.Sprintf(".FILL x%04X", uint16(code))
		}
	case OP_RES:
		out = fmt.Sprintf(".FILL x%04X", uint16(code))
	}

	return
}
