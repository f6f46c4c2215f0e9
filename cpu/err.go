package cpu

import (
	"errors"

	"github.com/ezrec/lc3/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrAddressOverflow = errors.New(f("address overflow"))
	ErrIllegalOpcode   = errors.New(f("illegal opcode"))
	ErrUnknownTrap     = errors.New(f("unknown trap"))
	ErrConsoleMissing  = errors.New(f("no console attached"))

	// Image errors
	ErrImageEmpty       = errors.New(f("image has no origin"))
	ErrImagePartialWord = errors.New(f("image doesn't map to a whole number of 2 byte words"))
	ErrImageHex         = errors.New(f("image is not hexadecimal"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".EQU syntax"))
	ErrEquateDuplicate    = errors.New(f(".EQU duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelInvalid       = errors.New(f("label invalid"))
	ErrOrigMissing        = errors.New(f(".ORIG missing"))
	ErrOrigDuplicate      = errors.New(f(".ORIG duplicated"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrStringInvalid      = errors.New(f("string invalid"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
)

// ErrFault reports the instruction that faulted during execution.
type ErrFault struct {
	Address uint16 // Address the instruction was fetched from.
	Code    Code   // Faulting instruction word.
	Err     error
}

func (err *ErrFault) Error() string {
	return f("x%04X: %v: %v", err.Address, err.Code.String(), err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}

// ErrTrapVector names a trap vector with no service routine.
type ErrTrapVector uint8

func (et ErrTrapVector) Error() string {
	return f("trap vector x%02X", uint8(et))
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrOffsetRange is returned when a literal or label distance does not fit
// its instruction field.
type ErrOffsetRange struct {
	Value int
	Bits  int
}

func (err ErrOffsetRange) Error() string {
	return f("%d does not fit in %d bits", err.Value, err.Bits)
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
