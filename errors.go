package main

import "errors"

var (
	// ErrInvalidConfiguration marks parameter bundles the simulator refuses to run with.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidInput marks bad data: prices, schedules, returns.
	ErrInvalidInput = errors.New("invalid input")
)
