package registration

import "github.com/pkg/errors"

var (
	// ErrEmptyInputCloud is returned when either input cloud has no points.
	ErrEmptyInputCloud = errors.New("input point cloud is empty")

	// ErrInvalidConfiguration is wrapped by every option validation failure.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoValidBase reports that the base selector exhausted its retries
	// without finding a well conditioned base. The trial is abandoned; the
	// run continues.
	ErrNoValidBase = errors.New("no valid base found")

	// ErrDegenerateConfiguration reports that a candidate point configuration
	// was too ill conditioned to fit a transform. The candidate is discarded;
	// the trial continues.
	ErrDegenerateConfiguration = errors.New("degenerate point configuration")
)
