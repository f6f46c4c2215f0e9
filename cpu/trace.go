package cpu

import (
	"fmt"
	"iter"
	"slices"
)

// EventKind is the type of a trace event.
type EventKind int

const (
	EVENT_EDGE_RISING      = EventKind(0) // edge-rising
	EVENT_EDGE_FALLING     = EventKind(1) // edge-falling
	EVENT_FETCH            = EventKind(2) // fetch
	EVENT_DECODE           = EventKind(3) // decode
	EVENT_REGISTER_WRITE   = EventKind(4) // register-write
	EVENT_MEMORY_WRITE     = EventKind(5) // memory-write
	EVENT_CONDITION_UPDATE = EventKind(6) // condition-update
	EVENT_HALT             = EventKind(7) // halt
)

var eventKindName = [...]string{
	"edge-rising",
	"edge-falling",
	"fetch",
	"decode",
	"register-write",
	"memory-write",
	"condition-update",
	"halt",
}

func (ek EventKind) String() string {
	if ek < 0 || int(ek) >= len(eventKindName) {
		return fmt.Sprintf("EventKind(%d)", int(ek))
	}
	return eventKindName[ek]
}

// Event is a single trace record. Which payload fields are meaningful
// depends on Kind:
//   - EVENT_FETCH: Address (the fetched PC), Value (the instruction).
//   - EVENT_DECODE: Opcode, Value (the instruction).
//   - EVENT_REGISTER_WRITE: Register (0-7, or REGISTER_PC), Value.
//   - EVENT_MEMORY_WRITE: Address, Value.
//   - EVENT_CONDITION_UPDATE: Flag.
//   - EVENT_HALT: Address (PC after the halting instruction), Value (the
//     halting instruction).
type Event struct {
	Kind     EventKind
	Address  uint16
	Register int
	Value    uint16
	Flag     Flag
	Opcode   Opcode
}

// REGISTER_PC is the Register of an EVENT_REGISTER_WRITE to the program
// counter.
const REGISTER_PC = REGISTER_COUNT

func (ev Event) String() string {
	switch ev.Kind {
	case EVENT_FETCH:
		return fmt.Sprintf("%v x%04X: x%04X", ev.Kind, ev.Address, ev.Value)
	case EVENT_DECODE:
		return fmt.Sprintf("%v %v", ev.Kind, Code(ev.Value))
	case EVENT_REGISTER_WRITE:
		if ev.Register == REGISTER_PC {
			return fmt.Sprintf("%v pc = x%04X", ev.Kind, ev.Value)
		}
		return fmt.Sprintf("%v r%d = x%04X", ev.Kind, ev.Register, ev.Value)
	case EVENT_MEMORY_WRITE:
		return fmt.Sprintf("%v [x%04X] = x%04X", ev.Kind, ev.Address, ev.Value)
	case EVENT_CONDITION_UPDATE:
		return fmt.Sprintf("%v %v", ev.Kind, ev.Flag)
	case EVENT_HALT:
		return fmt.Sprintf("%v x%04X", ev.Kind, ev.Address)
	default:
		return ev.Kind.String()
	}
}

// Trace is the ordered, append-only log of events produced by the Cpu.
type Trace struct {
	events []Event
}

// append records an event. Only the Cpu appends.
func (tr *Trace) append(ev Event) {
	tr.events = append(tr.events, ev)
}

// Reset discards all events.
func (tr *Trace) Reset() {
	tr.events = nil
}

// Len returns the number of events recorded.
func (tr *Trace) Len() int {
	return len(tr.events)
}

// Events returns a copy of the recorded events.
func (tr *Trace) Events() []Event {
	return slices.Clone(tr.events)
}

// Last returns the most recent event.
func (tr *Trace) Last() (ev Event, ok bool) {
	if len(tr.events) == 0 {
		return
	}
	return tr.events[len(tr.events)-1], true
}

// All returns an iterator over the recorded events, oldest first.
func (tr *Trace) All() iter.Seq[Event] {
	return slices.Values(tr.events)
}

// Since returns an iterator over the events recorded after the first n.
func (tr *Trace) Since(n int) iter.Seq[Event] {
	if n > len(tr.events) {
		n = len(tr.events)
	}
	return slices.Values(tr.events[n:])
}

// Kinds returns the kinds of the recorded events, oldest first.
func (tr *Trace) Kinds() (kinds []EventKind) {
	for _, ev := range tr.events {
		kinds = append(kinds, ev.Kind)
	}
	return
}
