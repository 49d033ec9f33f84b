package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrDuplicate  = errors.New("already exists")

	// ErrDoseIndexOutOfRange is returned when a dose index does not address a
	// slot in the medication's times list.
	ErrDoseIndexOutOfRange = errors.New("dose index out of range")

	// ErrOutOfWindow is returned when a dose is marked taken outside the
	// action window around its scheduled time.
	ErrOutOfWindow = errors.New("outside action window")

	// ErrPastReminder is returned when a reminder is scheduled for an instant
	// that has already passed.
	ErrPastReminder = errors.New("reminder time is in the past")

	// ErrWindowViolation is returned when a reminder time falls outside the
	// allowed lead window before its dose.
	ErrWindowViolation = errors.New("reminder time outside allowed window")

	// ErrTypeConflict is returned when a reminder of the other type already
	// occupies the same slot.
	ErrTypeConflict = errors.New("conflicting reminder type")
)
