package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/lc3/io"
)

// Console is the keyboard and display used by the trap routines.
type Console io.Console

var _cpu_defines = map[string]string{
	"PC_START":   fmt.Sprintf("x%04X", PC_START),
	"TRAP_GETC":  fmt.Sprintf("x%02X", uint8(TRAP_GETC)),
	"TRAP_OUT":   fmt.Sprintf("x%02X", uint8(TRAP_OUT)),
	"TRAP_PUTS":  fmt.Sprintf("x%02X", uint8(TRAP_PUTS)),
	"TRAP_IN":    fmt.Sprintf("x%02X", uint8(TRAP_IN)),
	"TRAP_PUTSP": fmt.Sprintf("x%02X", uint8(TRAP_PUTSP)),
	"TRAP_HALT":  fmt.Sprintf("x%02X", uint8(TRAP_HALT)),
}

// Signal is the process state of the Cpu.
type Signal struct {
	Clk      bool   // Logical clock level.
	Running  bool   // Cleared by HALT or an illegal opcode.
	Tracing  bool   // If set, events are retained in the trace.
	Instr    uint16 // Most recently fetched instruction.
	HasInstr bool   // Set once Instr has been fetched.
}

// State is the state of the clock state machine.
type State int

const (
	STATE_IDLE       = State(0) // idle
	STATE_CLOCK_HIGH = State(1) // high
	STATE_CLOCK_LOW  = State(2) // low
)

func (st State) String() string {
	switch st {
	case STATE_IDLE:
		return "idle"
	case STATE_CLOCK_HIGH:
		return "high"
	case STATE_CLOCK_LOW:
		return "low"
	}
	return fmt.Sprintf("State(%d)", int(st))
}

// Cpu is the simulation context for an LC-3 processor. Each Cpu owns its
// memory, registers, signal and trace; nothing is shared between instances.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Console Console // Keyboard and display for the trap routines.

	Memory    Memory    // Main memory.
	Registers Registers // Register file.
	Signal    Signal    // Clock and run state.
	Trace     Trace     // Event log.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a new CPU with zeroed memory and registers. It is not
// running until Reset.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// State returns the current state of the clock state machine.
func (cpu *Cpu) State() State {
	switch {
	case !cpu.Signal.Running:
		return STATE_IDLE
	case cpu.Signal.Clk:
		return STATE_CLOCK_HIGH
	default:
		return STATE_CLOCK_LOW
	}
}

// Running returns true until the program halts.
func (cpu *Cpu) Running() bool {
	return cpu.Signal.Running
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text = cpu.Registers.String()
	text += fmt.Sprintf("% 5s: %v\n", "state", cpu.State())
	if cpu.Signal.HasInstr {
		text += fmt.Sprintf("% 5s: x%04X %v\n", "instr", cpu.Signal.Instr, Code(cpu.Signal.Instr))
	} else {
		text += fmt.Sprintf("% 5s: ----\n", "instr")
	}
	return
}

// Reset the CPU state.
//   - Zeros the registers, sets PC to pc and the condition flag to P.
//   - Clears the signal (including Tracing) and the trace.
//   - Zeros memory, if clearMemory is set.
//   - Starts the CPU running.
func (cpu *Cpu) Reset(pc uint16, clearMemory bool) {
	if cpu.Verbose {
		log.Printf("cpu: reset, pc x%04X", pc)
	}

	if clearMemory {
		cpu.Memory.Reset()
	}

	cpu.Registers.Reset()
	cpu.Registers.Pc = pc
	cpu.Registers.Cond = FLAG_P

	cpu.Signal = Signal{Running: true}
	cpu.Trace.Reset()
	cpu.Ticks = 0
}

// SetClock drives the clock to level. A rising edge is recorded and does
// nothing else. A falling edge, while running, fetches, decodes and
// executes one instruction. Driving the clock to its current level is not
// an edge and records nothing.
func (cpu *Cpu) SetClock(level bool) (err error) {
	if level == cpu.Signal.Clk {
		return
	}

	cpu.Signal.Clk = level

	if level {
		cpu.emit(Event{Kind: EVENT_EDGE_RISING})
		return
	}

	cpu.emit(Event{Kind: EVENT_EDGE_FALLING})

	if !cpu.Signal.Running {
		return
	}

	return cpu.cycle()
}

// Step performs one full clock cycle, high to low to high, which executes
// one instruction.
func (cpu *Cpu) Step() (err error) {
	if !cpu.Signal.Clk {
		_ = cpu.SetClock(true)
	}

	err = cpu.SetClock(false)

	_ = cpu.SetClock(true)

	return
}

// cycle is the falling edge cascade: fetch, increment PC, then decode and
// execute. The order is fixed; PC relative addressing depends on PC having
// been incremented before decode.
func (cpu *Cpu) cycle() (err error) {
	pc := cpu.Registers.Pc
	code := Code(cpu.Memory.Read(pc))

	cpu.Signal.Instr = uint16(code)
	cpu.Signal.HasInstr = true
	cpu.emit(Event{Kind: EVENT_FETCH, Address: pc, Value: uint16(code)})

	cpu.Registers.Pc = pc + 1

	err = cpu.Execute(code)
	if err != nil {
		err = &ErrFault{Address: pc, Code: code, Err: err}
	}

	cpu.Ticks++

	return
}

// Execute decodes and executes a single instruction against the current
// state. PC must already point past the instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	op := code.Opcode()

	cpu.emit(Event{Kind: EVENT_DECODE, Opcode: op, Value: uint16(code)})

	if cpu.Verbose {
		log.Printf("x%04X: %v", cpu.Registers.Pc-1, code)
	}

	regs := &cpu.Registers
	mem := &cpu.Memory

	switch op {
	case OP_ADD:
		a := regs.Get(code.Sr1())
		b := code.Imm5()
		if !code.ImmFlag() {
			b = regs.Get(code.Sr2())
		}
		cpu.setRegister(code.Dr(), a+b, true)
	case OP_AND:
		a := regs.Get(code.Sr1())
		b := code.Imm5()
		if !code.ImmFlag() {
			b = regs.Get(code.Sr2())
		}
		cpu.setRegister(code.Dr(), a&b, true)
	case OP_NOT:
		cpu.setRegister(code.Dr(), ^regs.Get(code.Sr1()), true)
	case OP_BR:
		if code.Nzp()&regs.Cond != 0 {
			cpu.setPc(regs.Pc + code.PcOffset9())
		}
	case OP_JMP:
		cpu.setPc(regs.Get(code.Sr1()))
	case OP_JSR:
		link := regs.Pc
		target := regs.Get(code.Sr1())
		if code.LongFlag() {
			target = link + code.PcOffset11()
		}
		cpu.setRegister(REGISTER_R7, link, false)
		cpu.setPc(target)
	case OP_LD:
		cpu.setRegister(code.Dr(), mem.Read(regs.Pc+code.PcOffset9()), true)
	case OP_LDI:
		cpu.setRegister(code.Dr(), mem.Read(mem.Read(regs.Pc+code.PcOffset9())), true)
	case OP_LDR:
		cpu.setRegister(code.Dr(), mem.Read(regs.Get(code.Sr1())+code.Offset6()), true)
	case OP_LEA:
		cpu.setRegister(code.Dr(), regs.Pc+code.PcOffset9(), true)
	case OP_ST:
		cpu.setMemory(regs.Pc+code.PcOffset9(), regs.Get(code.Dr()))
	case OP_STI:
		cpu.setMemory(mem.Read(regs.Pc+code.PcOffset9()), regs.Get(code.Dr()))
	case OP_STR:
		cpu.setMemory(regs.Get(code.Sr1())+code.Offset6(), regs.Get(code.Dr()))
	case OP_TRAP:
		err = cpu.trap(code.TrapVector())
	case OP_RTI, OP_RES:
		err = ErrIllegalOpcode
		cpu.halt()
	default:
		panic(fmt.Sprintf("opcode %v out of range", op))
	}

	return
}

// emit records an event, if tracing.
func (cpu *Cpu) emit(ev Event) {
	if cpu.Signal.Tracing {
		cpu.Trace.append(ev)
	}
}

// setRegister writes a general purpose register, then optionally updates
// the condition flag from the written value.
func (cpu *Cpu) setRegister(r int, value uint16, flags bool) {
	cpu.Registers.Set(r, value)
	cpu.emit(Event{Kind: EVENT_REGISTER_WRITE, Register: r, Value: value})

	if flags {
		cond := cpu.Registers.SetFlags(value)
		cpu.emit(Event{Kind: EVENT_CONDITION_UPDATE, Flag: cond})
	}
}

// setPc writes the program counter.
func (cpu *Cpu) setPc(value uint16) {
	cpu.Registers.Pc = value
	cpu.emit(Event{Kind: EVENT_REGISTER_WRITE, Register: REGISTER_PC, Value: value})
}

// setMemory writes a word of memory.
func (cpu *Cpu) setMemory(addr uint16, value uint16) {
	cpu.Memory.Write(addr, value)
	cpu.emit(Event{Kind: EVENT_MEMORY_WRITE, Address: addr, Value: value})
}

// halt stops the CPU. Further falling edges execute nothing.
func (cpu *Cpu) halt() {
	cpu.Signal.Running = false
	cpu.emit(Event{Kind: EVENT_HALT, Address: cpu.Registers.Pc, Value: cpu.Signal.Instr})
}
