package registry

import "errors"

// Domain errors for the registry package. Check with errors.Is.
var (
	// ErrUnknownDevice is returned by Resolve when the device has never been
	// seen and the configured policy is "reject".
	ErrUnknownDevice = errors.New("registry: unknown device")

	// ErrAuthFailed is returned by Resolve when the device is known but the
	// supplied credentials fingerprint does not match.
	ErrAuthFailed = errors.New("registry: authentication failed")

	// ErrNotFound is returned by Snapshot and Evict for a device ID the
	// registry has no record of.
	ErrNotFound = errors.New("registry: device not found")

	// ErrInvalidPolicy is returned when the configured unknown-device policy
	// is not one of reject, auto_provision, quarantine.
	ErrInvalidPolicy = errors.New("registry: invalid unknown_device_policy")
)
