// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	goio "io"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/internal"
	"github.com/ezrec/lc3/io"
	"github.com/ezrec/lc3/translate"
)

var _emulator_defines = map[string]string{
	"MEMORY_SIZE": fmt.Sprintf("#%d", cpu.MEMORY_SIZE),
}

// Registers is a snapshot of R0-R7, PC and COND.
type Registers [cpu.REGISTER_COUNT + 2]uint16

// Emulator state. CPU + program listing + console.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the loaded program listing.

	Tape io.Tape // Default console.

	Origin uint16 // PC on reset.

	Tracing        bool        // If set, the cpu retains trace events after reset.
	TraceRegisters bool        // If set, each step records the registers before executing.
	RegisterTrace  []Registers // Register snapshots, oldest first.
}

// NewEmulator creates a new emulator, with the Tape as the console.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{Origin: cpu.PC_START},
		Origin:  cpu.PC_START,
	}

	emu.Cpu.Console = &emu.Tape

	return
}

// SetConsole replaces the console used by the trap routines.
func (emu *Emulator) SetConsole(con io.Console) {
	emu.Cpu.Console = con
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.Concat2(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assemble assembles source into memory, and makes it the current program.
func (emu *Emulator) Assemble(source goio.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	prog, err := asm.Parse(source)
	if err != nil {
		return
	}

	err = emu.load(prog.Image())
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Load places a memory image, and makes it the current program. The image
// has no source lines.
func (emu *Emulator) Load(img *cpu.Image) (err error) {
	err = emu.load(img)
	if err != nil {
		return
	}

	emu.Program = &cpu.Program{
		Origin: img.Origin,
		Statements: []cpu.Statement{
			{Address: img.Origin, Codes: codesOf(img.Words)},
		},
	}

	return
}

func codesOf(words []uint16) (codes []cpu.Code) {
	codes = make([]cpu.Code, len(words))
	for n, word := range words {
		codes[n] = cpu.Code(word)
	}
	return
}

// load replaces memory with img. On failure the current memory and
// program are left untouched.
func (emu *Emulator) load(img *cpu.Image) (err error) {
	var mem cpu.Memory

	err = img.Load(&mem)
	if err != nil {
		return
	}

	emu.Cpu.Memory = mem
	emu.Origin = img.Origin

	if emu.Verbose {
		translate.Log("emulator: loaded %d words at x%04X", len(img.Words), img.Origin)
	}

	return
}

// LoadBinary loads an image in its binary form.
func (emu *Emulator) LoadBinary(data []byte) (err error) {
	img, err := cpu.ParseImage(data)
	if err != nil {
		return
	}

	return emu.Load(img)
}

// LoadHex loads an image written as hexadecimal text.
func (emu *Emulator) LoadHex(text string) (err error) {
	img, err := cpu.ParseImageHex(text)
	if err != nil {
		return
	}

	return emu.Load(img)
}

// LoadFile loads a file: assembly source for the .asm suffix, otherwise a
// binary image.
func (emu *Emulator) LoadFile(path string) (err error) {
	if strings.EqualFold(filepath.Ext(path), ".asm") {
		var inf *os.File
		inf, err = os.Open(path)
		if err != nil {
			return
		}
		defer inf.Close()
		return emu.Assemble(inf)
	}

	img, err := cpu.ReadImageFile(path)
	if err != nil {
		return
	}

	return emu.Load(img)
}

// Reset the cpu to the program origin. Memory is kept.
func (emu *Emulator) Reset() {
	if emu.Verbose {
		translate.Log("-- RESET --")
	}

	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset(emu.Origin, false)
	emu.Cpu.Signal.Tracing = emu.Tracing

	emu.RegisterTrace = nil
}

// Ticks returns the total instructions executed since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() uint16 {
	return emu.Cpu.Registers.Pc
}

// Code returns the instruction at the program counter.
func (emu *Emulator) Code() cpu.Code {
	return cpu.Code(emu.Cpu.Memory.Read(emu.Pc()))
}

// LineNo returns the source line number of the instruction at the program
// counter, or 0 if unknown.
func (emu *Emulator) LineNo() int {
	return emu.Program.LineNo(emu.Pc())
}

// Step executes a single instruction. Stepping a halted cpu does nothing.
func (emu *Emulator) Step() (err error) {
	if !emu.Cpu.Running() {
		if emu.Verbose {
			translate.Log("-- HALTED --")
		}
		return
	}

	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Pc()
	defer func() {
		if err != nil {
			var fault *cpu.ErrFault
			if errors.As(err, &fault) {
				pc = fault.Address
			}
			err = &ErrRuntime{Address: pc, LineNo: emu.Program.LineNo(pc), Err: err}
		}
	}()

	if emu.TraceRegisters {
		emu.RegisterTrace = append(emu.RegisterTrace, emu.Cpu.Registers.Values())
	}

	err = emu.Cpu.Step()

	if !emu.Cpu.Running() && emu.Verbose {
		translate.Log("-- HALT --")
	}

	return
}

// Tick performs a single step of the emulator, and reports when the cpu
// has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	err = emu.Step()
	done = !emu.Cpu.Running()
	return
}

// Continue runs until the cpu halts or faults.
func (emu *Emulator) Continue() (err error) {
	return emu.Run(context.Background())
}

// Run runs until the cpu halts, faults, or ctx is done.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	if !emu.Cpu.Running() {
		return emu.Step()
	}

	for emu.Cpu.Running() {
		err = ctx.Err()
		if err != nil {
			return
		}

		err = emu.Step()
		if err != nil {
			return
		}
	}

	return
}
