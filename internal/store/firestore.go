package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jredh-dev/surpluserve/pkg/models"
)

const (
	usersCollection     = "users"
	donationsCollection = "donations"
)

// Firestore implements Store on a Firestore database. Documents are keyed
// by the model ID in the users and donations collections.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps an existing Firestore client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

// Close releases the underlying client.
func (s *Firestore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// --- Account operations ---

// CreateUser inserts a new account document.
func (s *Firestore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.client.Collection(usersCollection).Doc(u.ID).Create(ctx, u)
	return err
}

// GetUserByID looks up an account by ID.
func (s *Firestore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := &models.User{}
	if err := snap.DataTo(u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmailHash looks up an account by normalized email hash.
func (s *Firestore) GetUserByEmailHash(ctx context.Context, hash string) (*models.User, error) {
	iter := s.client.Collection(usersCollection).
		Where("emailHash", "==", hash).Limit(1).Documents(ctx)
	defer iter.Stop()

	snaps, err := iter.GetAll()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	u := &models.User{}
	if err := snaps[0].DataTo(u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

// UpdateLastLogin sets the lastLoginAt timestamp.
func (s *Firestore) UpdateLastLogin(ctx context.Context, userID string, t time.Time) error {
	_, err := s.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "lastLoginAt", Value: t},
	})
	return err
}

// --- Donation operations ---

// CreateDonation inserts a new donation document.
func (s *Firestore) CreateDonation(ctx context.Context, d *models.Donation) error {
	_, err := s.client.Collection(donationsCollection).Doc(d.ID).Create(ctx, d)
	return err
}

// GetDonation returns a donation by ID with its donor organization.
func (s *Firestore) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	snap, err := s.client.Collection(donationsCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := &models.Donation{}
	if err := snap.DataTo(d); err != nil {
		return nil, fmt.Errorf("decode donation %s: %w", id, err)
	}
	if err := s.annotateDonors(ctx, []*models.Donation{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// ListAvailable returns all available donations, newest first.
func (s *Firestore) ListAvailable(ctx context.Context) ([]models.Donation, error) {
	return s.SearchAvailable(ctx, Filter{})
}

// SearchAvailable returns available donations matching the filter, newest
// first. Firestore has no substring operator, so the foodType constraint
// is applied in memory after the status query.
func (s *Firestore) SearchAvailable(ctx context.Context, f Filter) ([]models.Donation, error) {
	q := s.client.Collection(donationsCollection).
		Where("status", "==", string(models.StatusAvailable))

	donations, err := s.queryDonations(ctx, q)
	if err != nil {
		return nil, err
	}

	if f.FoodType != "" || f.MinQuantity > 0 {
		needle := strings.ToLower(f.FoodType)
		filtered := donations[:0]
		for _, d := range donations {
			if needle != "" && !strings.Contains(strings.ToLower(d.FoodType), needle) {
				continue
			}
			if f.MinQuantity > 0 && d.Quantity < f.MinQuantity {
				continue
			}
			filtered = append(filtered, d)
		}
		donations = filtered
	}
	return donations, nil
}

// DonationsByDonor returns every donation owned by a donor, newest first.
func (s *Firestore) DonationsByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	q := s.client.Collection(donationsCollection).Where("donorRef", "==", donorID)
	return s.queryDonations(ctx, q)
}

// ClaimDonation transitions a donation from available to claimed inside a
// transaction, so the status check and the write commit together. A
// concurrent claimant aborts the loser's transaction and it reports false.
func (s *Firestore) ClaimDonation(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	ref := s.client.Collection(donationsCollection).Doc(id)
	claimed := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return nil // vanished between read and claim; report not claimed
		}
		if err != nil {
			return err
		}
		d := &models.Donation{}
		if err := snap.DataTo(d); err != nil {
			return fmt.Errorf("decode donation %s: %w", id, err)
		}
		if d.Status != models.StatusAvailable {
			return nil
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(models.StatusClaimed)},
			{Path: "recipientRef", Value: recipientID},
			{Path: "updatedAt", Value: at},
		}); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// ExpireDonations marks available donations past their expiration date as
// expired. Each document is re-checked inside its own transaction so a
// claim racing the sweep always wins.
func (s *Firestore) ExpireDonations(ctx context.Context, asOf time.Time) (int64, error) {
	iter := s.client.Collection(donationsCollection).
		Where("status", "==", string(models.StatusAvailable)).
		Where("expirationDate", "<", asOf).
		Documents(ctx)
	defer iter.Stop()

	snaps, err := iter.GetAll()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, snap := range snaps {
		ref := snap.Ref
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			cur, err := tx.Get(ref)
			if err != nil {
				return err
			}
			d := &models.Donation{}
			if err := cur.DataTo(d); err != nil {
				return err
			}
			if d.Status != models.StatusAvailable {
				return nil
			}
			moved++
			return tx.Update(ref, []firestore.Update{
				{Path: "status", Value: string(models.StatusExpired)},
				{Path: "updatedAt", Value: asOf},
			})
		})
		if err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// queryDonations runs q, decodes the results, sorts newest first, and
// annotates donor organizations.
func (s *Firestore) queryDonations(ctx context.Context, q firestore.Query) ([]models.Donation, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	snaps, err := iter.GetAll()
	if err != nil {
		return nil, err
	}

	donations := make([]models.Donation, 0, len(snaps))
	for _, snap := range snaps {
		var d models.Donation
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode donation %s: %w", snap.Ref.ID, err)
		}
		donations = append(donations, d)
	}

	// Sorting in memory keeps the status query free of composite-index
	// requirements.
	sort.Slice(donations, func(i, j int) bool {
		return donations[i].CreatedAt.After(donations[j].CreatedAt)
	})

	refs := make([]*models.Donation, len(donations))
	for i := range donations {
		refs[i] = &donations[i]
	}
	if err := s.annotateDonors(ctx, refs); err != nil {
		return nil, err
	}
	return donations, nil
}

// annotateDonors fills DonorOrg on each donation, fetching each donor
// document at most once.
func (s *Firestore) annotateDonors(ctx context.Context, donations []*models.Donation) error {
	orgs := make(map[string]string)
	for _, d := range donations {
		org, ok := orgs[d.DonorRef]
		if !ok {
			donor, err := s.GetUserByID(ctx, d.DonorRef)
			if err != nil {
				return err
			}
			if donor != nil {
				org = donor.Organization
			}
			orgs[d.DonorRef] = org
		}
		d.DonorOrg = org
	}
	return nil
}
