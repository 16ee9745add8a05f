package orch

import "time"

type Options struct {
	// RingTimeout <= 0 keeps calls ringing until answered, rejected or ended.
	RingTimeout time.Duration
}
