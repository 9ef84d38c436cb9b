package donation

import (
	"errors"
	"fmt"

	"github.com/jredh-dev/surpluserve/pkg/models"
)

var (
	// ErrInvalidID means the donation identifier is malformed. The store is
	// never consulted for these.
	ErrInvalidID = errors.New("invalid donation id")

	// ErrNotFound means the identifier is well-formed but matches nothing.
	ErrNotFound = errors.New("donation not found")

	// ErrUnauthenticated means the caller context is missing or does not
	// resolve to a recipient account.
	ErrUnauthenticated = errors.New("caller is not an authenticated recipient")

	// ErrInvalidInput means a create request failed field validation.
	ErrInvalidInput = errors.New("missing or invalid donation fields")
)

// AlreadyClaimedError reports a claim against a donation that is no longer
// available, carrying the status the caller lost to.
type AlreadyClaimedError struct {
	Status models.DonationStatus
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("donation already claimed (current status: %s)", e.Status)
}
