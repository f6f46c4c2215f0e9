package io

import (
	"errors"

	"github.com/ezrec/lc3/translate"
)

var f = translate.From

var (
	// Console errors
	ErrNoInput   = errors.New(f("console has no input"))
	ErrNoOutput  = errors.New(f("console has no output"))
	ErrInterrupt = errors.New(f("interrupted from keyboard"))
	ErrNotTTY    = errors.New(f("not a terminal"))
)
