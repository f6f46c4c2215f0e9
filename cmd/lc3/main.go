// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/emulator"
	"github.com/ezrec/lc3/inspect"
	"github.com/ezrec/lc3/io"
	"github.com/ezrec/lc3/statsview"
)

// Exit code when the program is interrupted from the keyboard.
const EXIT_INTERRUPT = 130

func main() {
	var compile string
	var load string
	var save bool
	var disasm bool
	var input string
	var output string
	var verbose bool
	var trace bool
	var raw bool
	var stats bool
	var dot string

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&load, "l", "", ".obj file to load")
	flag.BoolVar(&save, "s", false, "Save assembled .obj and .sym, do not execute")
	flag.BoolVar(&disasm, "d", false, "Print a disassembly listing, do not execute")
	flag.StringVar(&input, "i", "-", "Console input")
	flag.StringVar(&output, "o", "-", "Console output")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&trace, "t", false, "Print the execution trace to stderr")
	flag.BoolVar(&raw, "raw", false, "Read console input from the terminal in raw mode")
	flag.BoolVar(&stats, "stats", false, "Serve runtime statistics on "+statsview.Address)
	flag.StringVar(&dot, "dot", "", "Write the final machine state as a Graphviz .dot file")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Tracing = trace
	emu.TraceRegisters = trace

	name := os.Args[0]

	switch {
	case len(compile) != 0:
		name = compile
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		err = emu.Assemble(inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case len(load) != 0:
		name = load
		err := emu.LoadFile(load)
		if err != nil {
			log.Fatalf("%v: %v", load, err)
		}
	default:
		log.Fatalf("%v: one of -c or -l is required", os.Args[0])
	}

	if save {
		if len(compile) == 0 {
			log.Fatalf("%v: -s requires -c", os.Args[0])
		}
		base := strings.TrimSuffix(compile, filepath.Ext(compile))
		err := os.WriteFile(base+".obj", emu.Program.Binary(), 0o644)
		if err != nil {
			log.Fatalf("%v: %v", base+".obj", err)
		}
		err = os.WriteFile(base+".sym", []byte(emu.Program.SymbolTable()), 0o644)
		if err != nil {
			log.Fatalf("%v: %v", base+".sym", err)
		}
		return
	}

	if disasm {
		dis := &cpu.Disassembler{Symbols: emu.Program.Symbols}
		err := dis.Write(os.Stdout, emu.Program.Image())
		if err != nil {
			log.Fatalf("%v: %v", name, err)
		}
		return
	}

	if stats {
		statsview.Launch(os.Stderr)
	}

	con, done, err := openConsole(input, output, raw)
	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}
	defer done()
	emu.SetConsole(con)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	emu.Reset()
	err = emu.Run(ctx)

	if trace {
		for _, regs := range emu.RegisterTrace {
			fmt.Fprintf(os.Stderr, "regs: %04X\n", regs)
		}
		for ev := range emu.Cpu.Trace.All() {
			fmt.Fprintln(os.Stderr, ev)
		}
	}

	if len(dot) != 0 {
		ouf, derr := os.Create(dot)
		if derr != nil {
			log.Fatalf("%v: %v", dot, derr)
		}
		inspect.Snapshot(emu.Cpu, 32).Write(ouf)
		ouf.Close()
	}

	switch {
	case errors.Is(err, io.ErrInterrupt), errors.Is(err, context.Canceled):
		os.Exit(EXIT_INTERRUPT)
	case err != nil:
		log.Fatalf("%v: %v", name, err)
	}
}

// openConsole opens the console named by the -i and -o flags, where "-" is
// stdin or stdout. With raw set the input must be a terminal.
func openConsole(input, output string, raw bool) (con io.Console, done func(), err error) {
	var files []*os.File
	done = func() {
		for _, file := range files {
			file.Close()
		}
	}
	defer func() {
		if err != nil {
			done()
			con = nil
		}
	}()

	ouf := os.Stdout
	if output != "-" {
		ouf, err = os.Create(output)
		if err != nil {
			return
		}
		files = append(files, ouf)
	}

	inf := os.Stdin
	if input != "-" {
		inf, err = os.Open(input)
		if err != nil {
			return
		}
		files = append(files, inf)
	}

	if raw {
		con, err = io.NewTerminal(inf, ouf)
		return
	}

	con = &io.Tape{Input: inf, Output: ouf}
	return
}
