package diffexp

import "fmt"

// ConfigurationError reports an invalid comparison setup, such as a group
// assignment that does not yield exactly two labels. It is fatal to the
// specific call only.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return string(e)
}

// InsufficientSamplesError reports a group too small for the statistical
// model. It is fatal to the specific comparison only.
type InsufficientSamplesError struct {
	Group string
	N     int
}

func (e InsufficientSamplesError) Error() string {
	return fmt.Sprintf("diffexp: group %q has %d samples; at least 2 are required", e.Group, e.N)
}
