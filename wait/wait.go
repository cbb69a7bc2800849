// Package wait isolates every blocking delay in the executor behind one
// interface, so a cancellation signal can be introduced later without
// touching business logic.
package wait

import "time"

// Length names the four configured delay classes.
type Length int

const (
	Short  Length = iota // poll interval between cycles
	Middle               // connection retry interval
	Long                 // reserved for slow housekeeping
	Super                // cooldown after repeated order failures
)

func (l Length) String() string {
	switch l {
	case Short:
		return "short"
	case Middle:
		return "middle"
	case Long:
		return "long"
	case Super:
		return "super"
	}
	return "unknown"
}

// Waiter is the executor's only suspension primitive.
type Waiter interface {
	Wait(l Length)
	Sleep(d time.Duration)
}

// Clock is the production Waiter: plain blocking sleeps with configured
// durations per length.
type Clock struct {
	ShortD  time.Duration
	MiddleD time.Duration
	LongD   time.Duration
	SuperD  time.Duration
}

func (c Clock) Duration(l Length) time.Duration {
	switch l {
	case Short:
		return c.ShortD
	case Middle:
		return c.MiddleD
	case Long:
		return c.LongD
	case Super:
		return c.SuperD
	}
	return 0
}

func (c Clock) Wait(l Length) { time.Sleep(c.Duration(l)) }

func (c Clock) Sleep(d time.Duration) { time.Sleep(d) }
