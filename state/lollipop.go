package state

// Lollipop is a sequence counter with a linear region (LollipopCircularRegion, LollipopMaxValue]
// followed by a circular region [0, LollipopCircularRegion]. A counter starts in the linear
// region, so a node that restarts can be told apart from one whose counter has wrapped.
// See RFC 6550 section 7.2.
type Lollipop uint8

func (l Lollipop) linear() bool {
	return l > LollipopCircularRegion
}

// GreaterThan reports whether l is more recent than o.
//
// A linear value beats a circular one unless the circular value is within
// LollipopSequenceWindow increments of it (the linear counter has just wrapped).
// Two circular values compare by forward distance modulo the circular region and are
// considered desynchronized (neither is greater) when that distance falls outside the window.
func (l Lollipop) GreaterThan(o Lollipop) bool {
	a, b := int(l), int(o)
	switch {
	case l.linear() && !o.linear():
		return LollipopMaxValue+1+b-a > LollipopSequenceWindow
	case !l.linear() && o.linear():
		return LollipopMaxValue+1+a-b <= LollipopSequenceWindow
	case l.linear() && o.linear():
		return a > b
	}
	return (a > b && a-b < LollipopSequenceWindow) ||
		(a < b && b-a > LollipopCircularRegion+1-LollipopSequenceWindow)
}

// Comparable reports whether l and o are close enough for GreaterThan to order them.
func (l Lollipop) Comparable(o Lollipop) bool {
	return l == o || l.GreaterThan(o) || o.GreaterThan(l)
}

// Increment advances the counter, wrapping the circular region onto itself.
func (l *Lollipop) Increment() {
	if l.linear() {
		*l = Lollipop((int(*l) + 1) & LollipopMaxValue)
	} else {
		*l = Lollipop((int(*l) + 1) & LollipopCircularRegion)
	}
}

// Next returns the value that follows l.
func (l Lollipop) Next() Lollipop {
	l.Increment()
	return l
}
