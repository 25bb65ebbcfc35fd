package tillfront

import (
	"fmt"
)

// InvalidateError reports an Invalidate where both the revision bump and the
// provider delete failed. With only one of the two succeeding the entry is
// still unreachable, so a partial failure is not an error.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %q failed: rev bump and delete failed: bump=%v; delete=%v",
		e.Key, e.BumpErr, e.DelErr)
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
