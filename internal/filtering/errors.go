package filtering

import "errors"

var (
	// ErrEmptyRuleset is returned when compilation produced no usable rules.
	ErrEmptyRuleset = errors.New("filtering: no usable rules in sources")
	// ErrNoSources is returned when a compile is requested without sources.
	ErrNoSources = errors.New("filtering: no rule sources configured")
)
