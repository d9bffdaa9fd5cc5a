package channel

import "time"

// Backoff bounds reconnection: the n-th retry waits min(Base*2^n, Max), and
// after MaxAttempts consecutive failures the channel stops trying.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

var DefaultBackoff = Backoff{
	Base:        time.Second,
	Max:         10 * time.Second,
	MaxAttempts: 5,
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

func (b Backoff) withDefaults() Backoff {
	if b == (Backoff{}) {
		return DefaultBackoff
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	return b
}
