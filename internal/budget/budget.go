// Package budget defines the token ceilings for each named slot of an
// assembled context payload.
//
// The ceilings are a soft decomposition of the overall budget: they are
// not required to sum to Total, and each slot is truncated against its
// own ceiling independently of the others.
package budget

import "fmt"

// Slot names a category of prompt content.
type Slot string

const (
	SlotRole         Slot = "role"
	SlotMethodology  Slot = "methodology"
	SlotMemory       Slot = "memory"
	SlotReference    Slot = "reference"
	SlotAttachments  Slot = "attachments"
	SlotInstructions Slot = "instructions"
	SlotConversation Slot = "conversation"
)

// Slots lists every slot in assembly order. The conversation buffer is
// last because it is filled with whatever history fits after the system
// prompt is built.
var Slots = []Slot{
	SlotRole,
	SlotMethodology,
	SlotReference,
	SlotAttachments,
	SlotMemory,
	SlotInstructions,
	SlotConversation,
}

// Total is the overall payload target in estimated tokens.
const Total = 30000

// Table maps slots to token ceilings. Values are fixed at compile time.
type Table struct {
	ceilings map[Slot]int
}

var defaultTable = Table{ceilings: map[Slot]int{
	SlotRole:         500,
	SlotMethodology:  2000,
	SlotMemory:       14000,
	SlotReference:    3000,
	SlotAttachments:  4000,
	SlotInstructions: 500,
	SlotConversation: 9000,
}}

// Default returns the standard budget table.
func Default() Table {
	return defaultTable
}

// Ceiling returns the token ceiling for slot. It panics on an unknown
// slot, which can only happen through a programming error.
func (t Table) Ceiling(slot Slot) int {
	n, ok := t.ceilings[slot]
	if !ok {
		panic(fmt.Sprintf("budget: unknown slot %q", slot))
	}
	return n
}

// Sum returns the sum of all slot ceilings. It is informational only.
func (t Table) Sum() int {
	total := 0
	for _, n := range t.ceilings {
		total += n
	}
	return total
}
