package config

import (
	"errors"
	"fmt"
)

// ErrManifestNotFound is returned when a manifest file does not exist.
// Discovery treats it as "not a plugin"; a missing global manifest is fatal.
var ErrManifestNotFound = errors.New("manifest not found")

// MissingRequiredError reports that an option with a Required default
// resolved to nothing across all of its sources.
type MissingRequiredError struct {
	Option  string
	Sources string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("required configuration option missing: %s from sources %s", e.Option, e.Sources)
}

// CoercionError reports that a raw value could not be converted to an
// option's enforced type. The resolver treats it as "skip this source".
type CoercionError struct {
	Value  any
	Target ValueType
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %T(%v) to %s", e.Value, e.Value, e.Target)
}
