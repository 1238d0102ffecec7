// Package flags provides the tagged boolean bitset segment and page
// descriptors use for their permission and state bits, generalized from the
// teacher's MemoryFlags iota-bitset (kernel/memory.go) into a reusable type
// instead of one named bool field per flag.
package flags

// Set is a bitset of named boolean flags.
type Set uint32

// Has reports whether every bit in mask is set.
func (s Set) Has(mask Set) bool { return s&mask == mask }

// With returns s with mask set.
func (s Set) With(mask Set) Set { return s | mask }

// Without returns s with mask cleared.
func (s Set) Without(mask Set) Set { return s &^ mask }

// Segment permission flags (spec.md §3, "Segment descriptor... flags:
// readable, writeable, executable").
const (
	Readable Set = 1 << iota
	Writeable
	Executable
)

// Page state flags (spec.md §3, "Page descriptor... flags: valid, swap").
// Page and segment flags are never combined in the same Set value, but the
// bit ranges are kept disjoint anyway to make that assumption cheap to
// check in a debugger.
const (
	Valid Set = 1 << (iota + 8)
	Swap
)
