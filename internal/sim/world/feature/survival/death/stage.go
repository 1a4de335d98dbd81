package death

type Stage int

const (
	Locking Stage = iota
	Announcing
	Disposing
	Restoring
	Done
)

func (s Stage) String() string {
	switch s {
	case Locking:
		return "locking"
	case Announcing:
		return "announcing"
	case Disposing:
		return "disposing"
	case Restoring:
		return "restoring"
	default:
		return "done"
	}
}

// idleAfter is how many ticks the sequence sits idle after a stage ran.
// Locking, Announcing and Disposing land on countdown values 5, 3 and 1; Restoring on 0.
var idleAfter = map[Stage]int{
	Locking:    1,
	Announcing: 1,
	Disposing:  0,
}

func next(s Stage) Stage {
	if s >= Done {
		return Done
	}
	return s + 1
}

// TotalTicks is the number of Execute calls from start to completion.
func TotalTicks() int {
	n := 0
	for s := Locking; s < Done; s = next(s) {
		n += 1 + idleAfter[s]
	}
	return n
}

type retainedState int

const (
	retainedUnset retainedState = iota
	retainedPopulated
	retainedConsumed
)
