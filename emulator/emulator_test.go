package emulator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/lc3/cpu"
)

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	assert.False(emu.Verbose)
	assert.Equal(uint16(cpu.PC_START), emu.Origin)
	assert.False(emu.Cpu.Running())

	defines := map[string]string{}
	for equ, value := range emu.Defines() {
		defines[equ] = value
	}
	assert.Equal("x3000", defines["PC_START"])
	assert.Equal("x25", defines["TRAP_HALT"])
	assert.Equal("#65536", defines["MEMORY_SIZE"])
}

func doRunSingle(emu *Emulator, program []string, input []byte, t *testing.T) (output []byte) {
	assert := assert.New(t)

	err := emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	if !assert.NoError(err) {
		t.FailNow()
	}
	emu.Reset()

	emu.Tape.Input = bytes.NewReader(input)
	tape_output := &bytes.Buffer{}
	emu.Tape.Output = tape_output

	// Straight line code, each statement executed in order.
	for _, st := range emu.Program.Statements {
		here := program[st.LineNo-1]
		for n := range st.Codes {
			assert.Equal(st.Address+uint16(n), emu.Pc(), here)
			assert.Equal(st.LineNo, emu.LineNo(), here)
			assert.Equal(st.Codes[n], emu.Code(), here)
			done, err := emu.Tick()
			if !assert.NoError(err, here) {
				t.Log(emu.Cpu.String())
				t.FailNow()
			}
			if done {
				output = tape_output.Bytes()
				return
			}
		}
	}

	t.Fatal("program did not halt")
	return
}

func doRunBranch(emu *Emulator, program []string, input []byte, t *testing.T) (output []byte) {
	assert := assert.New(t)

	err := emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	if !assert.NoError(err) {
		t.FailNow()
	}
	emu.Reset()

	emu.Tape.Input = bytes.NewReader(input)
	tape_output := &bytes.Buffer{}
	emu.Tape.Output = tape_output

	var done bool
	for steps := 0; !done; steps++ {
		if steps > 10000 {
			t.Fatal("program did not halt")
		}
		line := emu.LineNo()
		if !assert.NotEqual(0, line, "x%04X", emu.Pc()) {
			t.FailNow()
		}
		here := program[line-1]
		done, err = emu.Tick()
		if !assert.NoError(err, here) {
			t.FailNow()
		}
	}

	output = tape_output.Bytes()
	return
}

func TestEmulatorRegisters(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	program := []string{
		".ORIG x3000",
		"AND R0, R0, #0",
		"ADD R1, R0, #15",
		"ADD R2, R1, R1",
		"NOT R3, R2",
		"ADD R4, R3, #1",
		"HALT",
	}

	doRunSingle(emu, program, nil, t)

	assert.Equal(uint16(0), emu.Cpu.Registers.R[0])
	assert.Equal(uint16(15), emu.Cpu.Registers.R[1])
	assert.Equal(uint16(30), emu.Cpu.Registers.R[2])
	assert.Equal(uint16(0xffe1), emu.Cpu.Registers.R[3])
	assert.Equal(uint16(0xffe2), emu.Cpu.Registers.R[4])
	assert.Equal(cpu.FLAG_N, emu.Cpu.Registers.Cond)
	assert.Equal(6, emu.Ticks())
}

func TestEmulatorEqu(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	program := []string{
		".EQU CONST_5 #5",
		".ORIG PC_START",
		"ADD R0, R0, CONST_5",
		"ADD R1, R0, $(CONST_5 + CONST_5)",
		".EQU CONST_15 $(2 * CONST_5 + CONST_5)",
		"ADD R2, R0, CONST_15",
		"LD R3, VALUE",
		"TRAP TRAP_HALT",
		"VALUE .FILL $(LINENO * 8 + 0x10)",
	}

	doRunSingle(emu, program, nil, t)

	assert.Equal(uint16(5), emu.Cpu.Registers.R[0])
	assert.Equal(uint16(15), emu.Cpu.Registers.R[1])
	assert.Equal(uint16(20), emu.Cpu.Registers.R[2])
	assert.Equal(uint16(9*8+0x10), emu.Cpu.Registers.R[3])
}

func TestEmulatorLabel(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	program := []string{
		".ORIG x3000",
		"        BR SETUP",
		"ADDONE: ADD R0, R0, #1",
		"        RET",
		"SETUP:  AND R0, R0, #0",
		"        ADD R2, R0, #3",
		"LOOP:   JSR ADDONE",
		"        ADD R2, R2, #-1",
		"        BRp LOOP",
		"        LEA R1, DONE",
		"        JMP R1",
		"        ADD R0, R0, #10",
		"DONE:   HALT",
	}

	doRunBranch(emu, program, nil, t)

	assert.Equal(uint16(3), emu.Cpu.Registers.R[0])
	assert.Equal(uint16(0), emu.Cpu.Registers.R[2])
	assert.Equal(uint16(0x3006), emu.Cpu.Registers.R[7])
}

func TestEmulatorEcho(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	program := []string{
		".ORIG x3000",
		"        LEA R0, PROMPT",
		"        PUTS",
		"LOOP:   GETC",
		"        ADD R1, R0, #-10  ; newline ends the echo",
		"        BRz DONE",
		"        OUT",
		"        BR LOOP",
		"DONE:   HALT",
		"PROMPT: .STRINGZ \"> \"",
	}

	output := doRunBranch(emu, program, []byte("hello\n"), t)

	assert.Equal("> hello", string(output))
}

func TestEmulatorHalted(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	err := emu.Assemble(strings.NewReader(".ORIG x3000\nHALT"))
	assert.NoError(err)
	emu.Reset()

	assert.NoError(emu.Continue())
	assert.False(emu.Cpu.Running())
	assert.Equal(1, emu.Ticks())

	// Stepping and continuing a halted machine do nothing.
	registers := emu.Cpu.Registers
	assert.NoError(emu.Step())
	assert.NoError(emu.Continue())
	assert.Equal(registers, emu.Cpu.Registers)
	assert.Equal(1, emu.Ticks())

	// Reset restarts it.
	emu.Reset()
	assert.True(emu.Cpu.Running())
	assert.Equal(uint16(0x3000), emu.Pc())
}

func TestEmulatorRuntimeError(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	program := []string{
		".ORIG x3000",
		"ADD R0, R0, #1",
		".FILL xD000",
		"HALT",
	}

	err := emu.Assemble(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(err)
	emu.Reset()

	err = emu.Continue()
	assert.ErrorIs(err, cpu.ErrIllegalOpcode)

	var rt *ErrRuntime
	if assert.True(errors.As(err, &rt)) {
		assert.Equal(uint16(0x3001), rt.Address)
		assert.Equal(3, rt.LineNo)
		assert.True(strings.HasPrefix(rt.Error(), "line 3 "))
	}
	assert.False(emu.Cpu.Running())
	assert.Equal(uint16(1), emu.Cpu.Registers.R[0])
}

func TestEmulatorUnknownTrap(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	err := emu.LoadHex("3000 F030 F025")
	assert.NoError(err)
	emu.Reset()

	err = emu.Continue()
	assert.ErrorIs(err, cpu.ErrUnknownTrap)
	assert.True(emu.Cpu.Running())

	var rt *ErrRuntime
	if assert.True(errors.As(err, &rt)) {
		assert.Equal(uint16(0x3000), rt.Address)
		assert.Equal(0, rt.LineNo)
	}

	// The driver decides to carry on.
	assert.NoError(emu.Continue())
	assert.False(emu.Cpu.Running())
}

func TestEmulatorRunCancel(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	err := emu.Assemble(strings.NewReader(".ORIG x3000\nSPIN BR SPIN"))
	assert.NoError(err)
	emu.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.True(emu.Cpu.Running())
}

func TestEmulatorTraceRegisters(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	emu.TraceRegisters = true
	emu.Tracing = true

	err := emu.Assemble(strings.NewReader(".ORIG x3000\nADD R1, R1, #2\nHALT"))
	assert.NoError(err)
	emu.Reset()
	assert.True(emu.Cpu.Signal.Tracing)

	assert.NoError(emu.Continue())

	assert.Equal([]Registers{
		{0, 0, 0, 0, 0, 0, 0, 0, 0x3000, uint16(cpu.FLAG_P)},
		{0, 2, 0, 0, 0, 0, 0, 0, 0x3001, uint16(cpu.FLAG_P)},
	}, emu.RegisterTrace)
	assert.Contains(emu.Cpu.Trace.Kinds(), cpu.EVENT_HALT)

	emu.Reset()
	assert.Nil(emu.RegisterTrace)
}

func TestEmulatorLoad(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	err := emu.LoadBinary([]byte{0x40, 0x00, 0xf0, 0x25})
	assert.NoError(err)
	assert.Equal(uint16(0x4000), emu.Origin)
	emu.Reset()
	assert.Equal(uint16(0x4000), emu.Pc())
	assert.Equal(cpu.Code(0xf025), emu.Code())

	err = emu.LoadBinary([]byte{0x40, 0x00, 0xf0})
	assert.ErrorIs(err, cpu.ErrImagePartialWord)

	err = emu.LoadHex("FFFF 1234 5678")
	assert.ErrorIs(err, cpu.ErrAddressOverflow)

	dir := t.TempDir()

	asm := filepath.Join(dir, "prog.asm")
	assert.NoError(os.WriteFile(asm, []byte(".ORIG x5000\nHALT\n"), 0o644))
	assert.NoError(emu.LoadFile(asm))
	assert.Equal(uint16(0x5000), emu.Origin)
	assert.Equal(2, emu.Program.LineNo(0x5000))

	obj := filepath.Join(dir, "prog.obj")
	assert.NoError(os.WriteFile(obj, emu.Program.Binary(), 0o644))
	emu.Cpu.Memory.Write(0x5000, 0)
	assert.NoError(emu.LoadFile(obj))
	assert.Equal(uint16(0xf025), emu.Cpu.Memory.Read(0x5000))
	assert.Equal(0, emu.Program.LineNo(0x5000))
}

func TestEmulatorLoadFailureKeepsProgram(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	err := emu.Assemble(strings.NewReader(".ORIG x3000\nADD R0, R0, #1\nHALT"))
	assert.NoError(err)

	table := [](struct {
		name string
		load func() error
		err  error
	}){
		{"overflow", func() error { return emu.LoadHex("FFFF 0001 0002") }, cpu.ErrAddressOverflow},
		{"partial", func() error { return emu.LoadBinary([]byte{0x40, 0x00, 0x12}) }, cpu.ErrImagePartialWord},
		{"source", func() error { return emu.Assemble(strings.NewReader(".ORIG x4000\nBOGUS R0")) }, cpu.ErrInstructionInvalid},
	}

	for _, entry := range table {
		err = entry.load()
		assert.ErrorIs(err, entry.err, entry.name)
		assert.Equal(uint16(0x1021), emu.Cpu.Memory.Read(0x3000), entry.name)
		assert.Equal(uint16(0xf025), emu.Cpu.Memory.Read(0x3001), entry.name)
		assert.Equal(uint16(0x3000), emu.Origin, entry.name)
		assert.Equal(2, emu.Program.LineNo(0x3000), entry.name)
	}

	emu.Reset()
	assert.NoError(emu.Continue())
	assert.Equal(uint16(1), emu.Cpu.Registers.R[0])
}
