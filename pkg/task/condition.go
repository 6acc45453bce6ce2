package task

type condOp int

const (
	opPredicate condOp = iota
	opAnd
	opOr
	opNot
)

// Condition is a boolean predicate over input state, sampled at most once per
// control cycle. It keeps the previous sample to detect edges, so several
// bindings can share one Condition and observe the same edge.
type Condition struct {
	name  string
	fn    func() bool
	op    condOp
	left  *Condition
	right *Condition

	sampled bool
	cycle   uint64
	prev    bool
	cur     bool
}

// NewCondition wraps fn. fn must be cheap and must not block.
func NewCondition(name string, fn func() bool) *Condition {
	return &Condition{name: name, fn: fn}
}

// And is true when both c and o are true. Both operands are sampled every
// cycle.
func (c *Condition) And(o *Condition) *Condition {
	return &Condition{name: c.name + "&" + o.name, op: opAnd, left: c, right: o}
}

// Or is true when either c or o is true. Both operands are sampled every
// cycle.
func (c *Condition) Or(o *Condition) *Condition {
	return &Condition{name: c.name + "|" + o.name, op: opOr, left: c, right: o}
}

func (c *Condition) Not() *Condition {
	return &Condition{name: "!" + c.name, op: opNot, left: c}
}

func (c *Condition) Name() string { return c.name }

// Value is the most recent sample.
func (c *Condition) Value() bool { return c.cur }

// Rising reports a false to true transition on the latest sample.
func (c *Condition) Rising() bool { return c.cur && !c.prev }

// Falling reports a true to false transition on the latest sample.
func (c *Condition) Falling() bool { return !c.cur && c.prev }

func (c *Condition) sample(cycle uint64) bool {
	if c.sampled && c.cycle == cycle {
		return c.cur
	}
	var v bool
	switch c.op {
	case opPredicate:
		v = c.fn != nil && c.fn()
	case opAnd:
		l := c.left.sample(cycle)
		r := c.right.sample(cycle)
		v = l && r
	case opOr:
		l := c.left.sample(cycle)
		r := c.right.sample(cycle)
		v = l || r
	case opNot:
		v = !c.left.sample(cycle)
	}
	c.prev, c.cur = c.cur, v
	c.sampled, c.cycle = true, cycle
	return v
}
