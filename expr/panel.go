package expr

// Panel is the fixed, ordered set of marker symbols shared by every dataset
// in a comparison. Symbols are unique; membership testing is the operation
// everything downstream leans on.
type Panel struct {
	symbols []string
	members map[string]struct{}
}

// NewPanel builds a panel from symbols, preserving first-occurrence order and
// discarding repeats.
func NewPanel(symbols []string) Panel {
	p := Panel{members: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		if _, seen := p.members[s]; seen {
			continue
		}
		p.members[s] = struct{}{}
		p.symbols = append(p.symbols, s)
	}

	return p
}

// Contains reports panel membership.
func (p Panel) Contains(symbol string) bool {
	_, ok := p.members[symbol]
	return ok
}

// Len returns the panel size.
func (p Panel) Len() int {
	return len(p.symbols)
}

// Symbols returns a copy of the panel in order.
func (p Panel) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)

	return out
}
