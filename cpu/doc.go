// Package cpu implements the LC-3 processor, its assembler and disassembler.
//
// The CPU consists of eight 16-bit general-purpose registers (R0-R7), a
// program counter, a single N/Z/P condition flag, and 64K words of memory.
// Execution is driven by a logical clock: the falling edge of the clock
// fetches the word at PC, advances PC, then decodes and executes it. Every
// state change made during that cascade is appended, in order, to the trace.
//
// TRAP service routines are not run from memory; GETC, OUT, PUTS, IN, PUTSP
// and HALT are performed directly against an attached Console.
//
// The assembler accepts the usual LC-3 assembly language (.ORIG, .FILL,
// .BLKW, .STRINGZ, .END) plus .EQU equates and $(...) compile-time
// expressions, and produces a Program that carries both the symbol table and
// the flat binary image.
package cpu
