package app

// Countdown tracks the remaining seconds of a timed question window. Ticks
// are driven by the owning session, which also serializes access; the type
// itself is not safe for concurrent use.
type Countdown struct {
	remaining int
	expired   bool
}

// NewCountdown starts a countdown at remainingSeconds, clamped to zero.
// A countdown that starts at zero fires expiry on its first tick.
func NewCountdown(remainingSeconds int) *Countdown {
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	return &Countdown{remaining: remainingSeconds}
}

// Tick advances the countdown by one second and reports the seconds left and
// whether this tick fired expiry. Expiry fires exactly once, on the tick that
// first reaches zero; ticks after expiry are no-ops.
func (c *Countdown) Tick() (remaining int, fired bool) {
	if c.expired {
		return 0, false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.expired = true
		return 0, true
	}
	return c.remaining, false
}

// Remaining reports the seconds left before expiry.
func (c *Countdown) Remaining() int {
	if c.expired {
		return 0
	}
	return c.remaining
}

// Expired reports whether the countdown has fired.
func (c *Countdown) Expired() bool { return c.expired }
