// Package upstream marks failures of external services the API fronts, so
// handlers can answer 502 instead of 500 and tell clients a retry may help.
package upstream

// Error wraps a failure reaching an external service.
type Error struct {
	Service string
	Err     error
}

func (e *Error) Error() string {
	return e.Service + " unavailable: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
