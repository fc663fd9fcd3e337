package domain

import "errors"

var (
	// ErrHealthDataUnavailable indicates that no health data store is usable on this host.
	ErrHealthDataUnavailable = errors.New("health data unavailable")
	// ErrAuthorizationDenied indicates that read/write access to health data was not granted.
	ErrAuthorizationDenied = errors.New("health data authorization denied")
	// ErrDuplicateSlotName indicates that another time slot already uses the name.
	ErrDuplicateSlotName = errors.New("time slot name already exists")
	// ErrSchedulingFailure indicates that a reminder could not be registered.
	ErrSchedulingFailure = errors.New("reminder scheduling failed")
	// ErrPersistenceFailure indicates that a store write failed.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrPermissionDenied indicates that the user has not allowed notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrSlotNotFound indicates that the requested time slot does not exist.
	ErrSlotNotFound = errors.New("time slot not found")
	// ErrInvalidSlot indicates that a time slot field failed validation.
	ErrInvalidSlot = errors.New("invalid time slot")
	// ErrInvalidMeasurement indicates that a measurement is out of range.
	ErrInvalidMeasurement = errors.New("invalid measurement")
)
