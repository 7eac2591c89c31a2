package pooling

import "github.com/pkg/errors"

// Error kinds surfaced by the pooling core. All three are non-retryable
// configuration or usage bugs in the caller; none indicate transient
// conditions. Match with errors.Is.
var (
	// ErrConfiguration marks an unsupported or inconsistent pooling setup:
	// wrong rank, non-positive kernel extents, padding not smaller than the
	// kernel, or an unknown pooling algorithm.
	ErrConfiguration = errors.New("pooling: invalid configuration")

	// ErrMissingWorkspace marks a training-mode max-pooling call that did
	// not supply the required workspace buffer. Without it the backward
	// pass cannot reconstruct which input fed each output.
	ErrMissingWorkspace = errors.New("pooling: required workspace not supplied")

	// ErrInternal marks a broken internal invariant, e.g. an executor with
	// no compiled plan. Should be unreachable through the public API.
	ErrInternal = errors.New("pooling: internal invariant violated")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
