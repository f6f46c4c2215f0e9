package cpu

import (
	"errors"
	"log"
)

// IN_PROMPT is written by the IN trap before reading a character.
const IN_PROMPT = "Enter a character: "

// trap performs the service routine for vector directly, without running
// any code from memory.
func (cpu *Cpu) trap(vector TrapVector) (err error) {
	switch vector {
	case TRAP_HALT:
		if cpu.Verbose {
			log.Printf("cpu: halt at x%04X", cpu.Registers.Pc-1)
		}
		cpu.halt()
		return
	case TRAP_GETC, TRAP_OUT, TRAP_PUTS, TRAP_IN, TRAP_PUTSP:
		if cpu.Console == nil {
			err = ErrConsoleMissing
			return
		}
	default:
		err = errors.Join(ErrUnknownTrap, ErrTrapVector(vector))
		return
	}

	con := cpu.Console
	regs := &cpu.Registers

	switch vector {
	case TRAP_GETC:
		var ch byte
		ch, err = con.GetChar()
		if err != nil {
			return
		}
		cpu.setRegister(0, uint16(ch), false)
	case TRAP_OUT:
		err = con.PutChar(byte(regs.Get(0)))
	case TRAP_PUTS:
		err = cpu.putString(regs.Get(0), false)
	case TRAP_PUTSP:
		err = cpu.putString(regs.Get(0), true)
	case TRAP_IN:
		for n := range len(IN_PROMPT) {
			err = con.PutChar(IN_PROMPT[n])
			if err != nil {
				return
			}
		}
		var ch byte
		ch, err = con.GetChar()
		if err != nil {
			return
		}
		err = con.PutChar(ch)
		if err != nil {
			return
		}
		cpu.setRegister(0, uint16(ch), false)
	}

	return
}

// putString writes the zero terminated string at addr to the console.
// Unpacked strings hold one character per word; packed strings hold two,
// low byte first. The string ends at the top of memory if no terminator is
// found.
func (cpu *Cpu) putString(addr uint16, packed bool) (err error) {
	for {
		word := cpu.Memory.Read(addr)
		if word == 0 {
			return
		}

		err = cpu.Console.PutChar(byte(word & 0xff))
		if err != nil {
			return
		}

		if packed && (word>>8) != 0 {
			err = cpu.Console.PutChar(byte(word >> 8))
			if err != nil {
				return
			}
		}

		addr++
		if addr == 0 {
			return
		}
	}
}
