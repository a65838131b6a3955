package service

import "time"

// Clock returns the current time. Every service takes one so tests can move
// time forward without sleeping.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
