package services

import "time"

// Clock abstracts wall-clock reads so timer and invoice behavior can be
// tested without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
