package exam

// Ledger holds one slot per session question: nil when unanswered, otherwise
// the selected option index.
type Ledger []*int

// NewLedger returns an all-unanswered ledger of length n.
func NewLedger(n int) Ledger {
	return make(Ledger, n)
}

// At returns the selection at position i.
func (l Ledger) At(i int) (int, bool) {
	if i < 0 || i >= len(l) || l[i] == nil {
		return 0, false
	}
	return *l[i], true
}

// set stores option at position i. Bounds are the caller's concern.
func (l Ledger) set(i, option int) {
	v := option
	l[i] = &v
}

// Answered counts the slots holding a selection.
func (l Ledger) Answered() int {
	n := 0
	for _, v := range l {
		if v != nil {
			n++
		}
	}
	return n
}

// NextUnanswered returns the first unanswered position after from, wrapping
// around to the start. ok is false when every slot is answered.
func (l Ledger) NextUnanswered(from int) (int, bool) {
	n := len(l)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if l[i] == nil {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy so callers cannot mutate engine state.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for i, v := range l {
		if v != nil {
			c := *v
			out[i] = &c
		}
	}
	return out
}
