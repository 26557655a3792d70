package clock

import "time"

// Clock abstracts time.Now so expiry decisions stay testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock returns the wall clock in UTC.
func NewSystemClock() Clock { return systemClock{} }
