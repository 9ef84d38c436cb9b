// Package store defines the persistence interface for accounts and
// donations, with SQLite and Firestore drivers behind it.
package store

import (
	"context"
	"time"

	"github.com/jredh-dev/surpluserve/pkg/models"
)

// Filter narrows a search over available donations. Zero-valued fields
// impose no constraint.
type Filter struct {
	FoodType    string // case-insensitive substring match
	MinQuantity int    // quantity >= MinQuantity
}

// Store is the persistence contract. Lookup methods return (nil, nil) when
// no record matches; errors are reserved for store faults.
//
// ClaimDonation is the one conditional write: it transitions the donation
// to claimed only while its status is still available, atomically, and
// reports whether the transition happened. Callers must treat a false
// result as a lost race, not an error.
type Store interface {
	// Accounts.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmailHash(ctx context.Context, hash string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, t time.Time) error

	// Donations. Reads annotate DonorOrg from the owning account.
	CreateDonation(ctx context.Context, d *models.Donation) error
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	ListAvailable(ctx context.Context) ([]models.Donation, error)
	SearchAvailable(ctx context.Context, f Filter) ([]models.Donation, error)
	DonationsByDonor(ctx context.Context, donorID string) ([]models.Donation, error)
	ClaimDonation(ctx context.Context, id, recipientID string, at time.Time) (bool, error)

	// ExpireDonations moves every available donation whose expiration date
	// is before asOf into the expired status and returns how many moved.
	// Driven only by the expiry sweeper.
	ExpireDonations(ctx context.Context, asOf time.Time) (int64, error)

	Close() error
}
