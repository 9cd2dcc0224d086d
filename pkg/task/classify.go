package task

import (
	"errors"

	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

// classify maps an Adapter error to a §7 error kind. Adapters are expected
// to wrap the uploaderrors sentinels when they can distinguish a cause;
// anything else is treated as a transient network failure, since that's the
// only kind the dispatch loop can safely retry without more information.
func classify(err error) uploaderrors.Kind {
	switch {
	case err == nil:
		return uploaderrors.KindTransientNetwork
	case errors.Is(err, uploaderrors.ErrTokenExpired):
		return uploaderrors.KindTokenExpired
	case errors.Is(err, uploaderrors.ErrHashMismatch):
		return uploaderrors.KindHashMismatch
	case errors.Is(err, uploaderrors.ErrPlanInconsistency):
		return uploaderrors.KindPlanInconsistency
	case errors.Is(err, uploaderrors.ErrAdapterContract):
		return uploaderrors.KindAdapterContractViolation
	default:
		return uploaderrors.KindTransientNetwork
	}
}
