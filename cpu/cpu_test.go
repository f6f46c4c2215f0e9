package cpu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/lc3/io"
)

// boot assembles source into a fresh, running cpu with a tape console.
func boot(t *testing.T, source string, input string) (cpu *Cpu, output *bytes.Buffer) {
	t.Helper()

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source))
	if err != nil {
		t.Fatal(err)
	}

	output = &bytes.Buffer{}

	cpu = NewCpu()
	cpu.Console = &io.Tape{Input: strings.NewReader(input), Output: output}
	err = prog.Image().Load(&cpu.Memory)
	if err != nil {
		t.Fatal(err)
	}
	cpu.Reset(prog.Origin, false)

	return
}

// run steps the cpu until it halts, or faults.
func run(cpu *Cpu, limit int) (err error) {
	for range limit {
		if !cpu.Running() {
			return
		}
		err = cpu.Step()
		if err != nil {
			return
		}
	}
	return
}

func TestCpuAndHalt(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		AND R0, R0, #0
		HALT
		.END
	`, "")

	cpu.Registers.R[0] = 0x1234

	err := run(cpu, 10)
	assert.NoError(err)
	assert.False(cpu.Running())
	assert.Equal(uint16(0), cpu.Registers.R[0])
	assert.Equal(FLAG_Z, cpu.Registers.Cond)
	assert.Equal(uint16(0x3002), cpu.Registers.Pc)
	assert.Equal(2, cpu.Ticks)
	assert.Equal(STATE_IDLE, cpu.State())
}

func TestCpuHelloPuts(t *testing.T) {
	assert := assert.New(t)

	cpu, output := boot(t, `
		.ORIG x3000
		LEA R0, MSG
		PUTS
		HALT
MSG		.STRINGZ "Hi"
		.END
	`, "")

	err := run(cpu, 10)
	assert.NoError(err)
	assert.False(cpu.Running())
	assert.Equal("Hi", output.String())
	assert.Equal(uint16(0x3003), cpu.Registers.R[0])
}

func TestCpuAddNegative(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		ADD R1, R1, #-1
		HALT
	`, "")

	err := cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(0xffff), cpu.Registers.R[1])
	assert.Equal(FLAG_N, cpu.Registers.Cond)
	assert.True(cpu.Running())
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.False(cpu.Running())

	cpu.Memory.Write(0x4000, 0xbeef)
	cpu.Registers.R[3] = 7
	cpu.Reset(0x3000, false)
	assert.True(cpu.Running())
	assert.Equal(uint16(0x3000), cpu.Registers.Pc)
	assert.Equal(FLAG_P, cpu.Registers.Cond)
	assert.Equal(uint16(0), cpu.Registers.R[3])
	assert.Equal(uint16(0xbeef), cpu.Memory.Read(0x4000))
	assert.Equal(STATE_CLOCK_LOW, cpu.State())

	cpu.Reset(0x3000, true)
	assert.Equal(uint16(0), cpu.Memory.Read(0x4000))
}

func TestCpuClockLevels(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		ADD R2, R2, #5
		HALT
	`, "")
	cpu.Signal.Tracing = true

	// Same level is not an edge.
	assert.NoError(cpu.SetClock(false))
	assert.Equal(0, cpu.Trace.Len())

	// Rising edge records and does nothing else.
	assert.NoError(cpu.SetClock(true))
	assert.Equal([]EventKind{EVENT_EDGE_RISING}, cpu.Trace.Kinds())
	assert.Equal(uint16(0), cpu.Registers.R[2])
	assert.Equal(STATE_CLOCK_HIGH, cpu.State())

	assert.NoError(cpu.SetClock(true))
	assert.Equal(1, cpu.Trace.Len())

	// Falling edge executes.
	assert.NoError(cpu.SetClock(false))
	assert.Equal(uint16(5), cpu.Registers.R[2])
	assert.Equal(STATE_CLOCK_LOW, cpu.State())
}

func TestCpuHaltedIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		ADD R0, R0, #1
		HALT
		ADD R0, R0, #1
	`, "")

	assert.NoError(run(cpu, 10))
	assert.False(cpu.Running())

	cpu.Signal.Tracing = true

	memory := cpu.Memory
	registers := cpu.Registers

	for range 1000 {
		assert.NoError(cpu.SetClock(false))
		assert.NoError(cpu.SetClock(true))
	}

	assert.Equal(registers, cpu.Registers)
	assert.True(memory == cpu.Memory)
	for ev := range cpu.Trace.All() {
		assert.Contains([]EventKind{EVENT_EDGE_RISING, EVENT_EDGE_FALLING}, ev.Kind)
	}
	assert.Equal(2000, cpu.Trace.Len())
}

func TestCpuIllegalOpcode(t *testing.T) {
	assert := assert.New(t)

	for _, word := range []uint16{0xd000, 0x8000, 0xdfff} {
		cpu := NewCpu()
		cpu.Memory.Write(0x3000, word)
		cpu.Reset(0x3000, false)
		cpu.Signal.Tracing = true
		cpu.Registers.R[0] = 0x1111

		memory := cpu.Memory

		err := cpu.Step()
		assert.ErrorIs(err, ErrIllegalOpcode)

		var fault *ErrFault
		if assert.ErrorAs(err, &fault) {
			assert.Equal(uint16(0x3000), fault.Address)
			assert.Equal(Code(word), fault.Code)
		}

		assert.False(cpu.Running())
		assert.Equal(uint16(0x1111), cpu.Registers.R[0])
		assert.Equal(FLAG_P, cpu.Registers.Cond)
		assert.Equal(uint16(0x3001), cpu.Registers.Pc)
		assert.True(memory == cpu.Memory)

		for ev := range cpu.Trace.All() {
			assert.NotEqual(EVENT_REGISTER_WRITE, ev.Kind)
			assert.NotEqual(EVENT_MEMORY_WRITE, ev.Kind)
		}
		last, ok := cpu.Trace.Last()
		assert.True(ok)
		assert.Equal(EVENT_EDGE_RISING, last.Kind)
		assert.Contains(cpu.Trace.Kinds(), EVENT_HALT)
	}
}

func TestCpuUnknownTrap(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Memory.Write(0x3000, uint16(MakeCodeTrap(0x30)))
	cpu.Reset(0x3000, false)

	err := cpu.Step()
	assert.ErrorIs(err, ErrUnknownTrap)
	assert.True(errors.Is(err, ErrTrapVector(0x30)))
	assert.True(cpu.Running())
	assert.Equal(uint16(0x3001), cpu.Registers.Pc)
}

func TestCpuBranches(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		cond   Flag
		nzp    Flag
		offset uint16
		pc     uint16
	}){
		{"always", FLAG_P, FLAG_N | FLAG_Z | FLAG_P, 4, 0x3005},
		{"never", FLAG_P, 0, 4, 0x3001},
		{"z_taken", FLAG_Z, FLAG_Z, 1, 0x3002},
		{"z_not_taken", FLAG_N, FLAG_Z, 1, 0x3001},
		{"np_backwards", FLAG_N, FLAG_N | FLAG_P, 0x1ff, 0x3000},
		{"self", FLAG_Z, FLAG_Z, 0x1fe, 0x2fff},
	}

	for _, entry := range table {
		cpu := NewCpu()
		cpu.Memory.Write(0x3000, uint16(MakeCodeBr(entry.nzp, entry.offset)))
		cpu.Reset(0x3000, false)
		cpu.Registers.Cond = entry.cond

		assert.NoError(cpu.Step(), entry.name)
		assert.Equal(entry.pc, cpu.Registers.Pc, entry.name)
		assert.Equal(entry.cond, cpu.Registers.Cond, entry.name)
	}
}

func TestCpuMemoryOps(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		LD R1, VALUE     ; R1 = x1234
		LDI R2, POINTER  ; R2 = [x3010] = x00AA
		LEA R3, VALUE
		LDR R4, R3, #1   ; R4 = POINTER
		ST R1, SAVE
		STI R1, POINTER  ; [x3010] = x1234
		STR R2, R3, #2   ; SAVE = x00AA
		NOT R5, R1
		HALT
VALUE	.FILL x1234
POINTER	.FILL x3010
SAVE	.BLKW 1
	`, "")
	cpu.Memory.Write(0x3010, 0xaa)

	assert.NoError(run(cpu, 20))
	assert.False(cpu.Running())

	assert.Equal(uint16(0x1234), cpu.Registers.R[1])
	assert.Equal(uint16(0x00aa), cpu.Registers.R[2])
	assert.Equal(uint16(0x3009), cpu.Registers.R[3])
	assert.Equal(uint16(0x3010), cpu.Registers.R[4])
	assert.Equal(uint16(0x1234), cpu.Memory.Read(0x3010))
	assert.Equal(uint16(0x00aa), cpu.Memory.Read(0x300b))
	assert.Equal(uint16(0xedcb), cpu.Registers.R[5])
	assert.Equal(FLAG_N, cpu.Registers.Cond)
}

func TestCpuSubroutines(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := boot(t, `
		.ORIG x3000
		JSR DOUBLE
		LEA R6, TRIPLE
		JSRR R6
		HALT
DOUBLE	ADD R0, R0, R0
		RET
TRIPLE	ADD R1, R0, R0
		ADD R0, R1, R0
		RET
	`, "")
	cpu.Registers.R[0] = 3

	assert.NoError(run(cpu, 20))
	assert.Equal(uint16(18), cpu.Registers.R[0])
	assert.Equal(uint16(0x3003), cpu.Registers.R[7])
}

func TestCpuJsrrLinkRegister(t *testing.T) {
	assert := assert.New(t)

	// JSRR R7 jumps to the old R7, not the new link.
	cpu := NewCpu()
	cpu.Memory.Write(0x3000, uint16(MakeCodeJsrr(REGISTER_R7)))
	cpu.Reset(0x3000, false)
	cpu.Registers.R[7] = 0x4000

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x4000), cpu.Registers.Pc)
	assert.Equal(uint16(0x3001), cpu.Registers.R[7])
}

func TestCpuConsoleMissing(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Memory.Write(0x3000, uint16(MakeCodeTrap(TRAP_OUT)))
	cpu.Memory.Write(0x3001, uint16(MakeCodeTrap(TRAP_HALT)))
	cpu.Reset(0x3000, false)

	assert.ErrorIs(cpu.Step(), ErrConsoleMissing)
	assert.NoError(cpu.Step())
	assert.False(cpu.Running())
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Reset(0x3000, false)

	text := cpu.String()
	assert.Contains(text, "   pc: x3000\n")
	assert.Contains(text, " cond: p\n")
	assert.Contains(text, "state: low\n")
	assert.Contains(text, "instr: ----\n")
}
