package hardware

import "fmt"

// CommandKind discriminates the HardwareCommand tagged union (spec §4.4).
type CommandKind int

const (
	CommandWrite CommandKind = iota
	CommandWriteWithResponse
	CommandRead
	CommandSubscribe
	CommandUnsubscribe
)

func (k CommandKind) String() string {
	switch k {
	case CommandWrite:
		return "Write"
	case CommandWriteWithResponse:
		return "WriteWithResponse"
	case CommandRead:
		return "Read"
	case CommandSubscribe:
		return "Subscribe"
	case CommandUnsubscribe:
		return "Unsubscribe"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a single instruction to a Hardware's Endpoint: a write, a
// read, or a subscription change. Write payloads are immutable snapshots;
// callers must not mutate Data after handing the command off.
type Command struct {
	Kind     CommandKind
	Endpoint Endpoint
	Data     []byte
}

// Overlaps reports whether c and other target the same endpoint and kind,
// meaning a later command in a batch supersedes an earlier one rather than
// needing to be sent separately. Used by the per-device task's message-gap
// batcher to deduplicate commands accumulated during one gap window
// (spec §4.5).
func (c Command) Overlaps(other Command) bool {
	return c.Kind == other.Kind && c.Endpoint == other.Endpoint
}

// MergeCommand appends c to deque, first removing every existing entry c
// overlaps, so a later command supersedes rather than duplicates an
// earlier one targeting the same endpoint and kind. Used to assemble the
// per-device task's pending hardware-command deque across a batch window
// (spec §4.5).
func MergeCommand(deque []Command, c Command) []Command {
	out := deque[:0:0]
	for _, e := range deque {
		if !c.Overlaps(e) {
			out = append(out, e)
		}
	}
	return append(out, c)
}

// Event is a value received asynchronously from a Hardware: a
// notification on a subscribed endpoint, a read result, or a terminal
// disconnect.
type Event struct {
	Endpoint     Endpoint
	Data         []byte
	Disconnected bool
	Err          error
}
