// Package donation is the lifecycle manager for donations: creation,
// lookup, search, and the available -> claimed transition with its
// derived receipt.
package donation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/surpluserve/internal/events"
	"github.com/jredh-dev/surpluserve/internal/receipt"
	"github.com/jredh-dev/surpluserve/internal/store"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

// publishTimeout bounds the best-effort claim event write.
const publishTimeout = 5 * time.Second

// Service owns the donation state machine. It is stateless between calls;
// all coordination lives in the store's conditional write.
type Service struct {
	store  store.Store
	events *events.Publisher // optional; nil disables claim events
	now    func() time.Time
}

// New creates a donation service. publisher may be nil.
func New(st store.Store, publisher *events.Publisher) *Service {
	return &Service{
		store:  st,
		events: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// validID reports whether id is syntactically a donation identifier.
// Malformed ids are rejected before any store round-trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Claim transitions a donation from available to claimed on behalf of the
// calling recipient and derives its receipt.
//
// The status check and the write are a single conditional update in the
// store, so at most one of any number of concurrent claimants succeeds;
// the rest get AlreadyClaimedError with the status they lost to.
//
// A receipt always accompanies a successful claim. If the QR render fails
// the receipt is returned without the image: the business transition has
// already committed and is not rolled back for a cosmetic failure.
func (s *Service) Claim(ctx context.Context, donationID string, caller *models.Identity) (*models.Donation, *models.Receipt, error) {
	if !validID(donationID) {
		return nil, nil, ErrInvalidID
	}
	if caller == nil || caller.ID == "" {
		return nil, nil, ErrUnauthenticated
	}

	// Resolve the caller to a stored recipient account before touching the
	// donation, so an unresolvable caller can never commit a transition.
	recipient, err := s.store.GetUserByID(ctx, caller.ID)
	if err != nil {
		return nil, nil, err
	}
	if recipient == nil || recipient.Role != models.RoleRecipient {
		return nil, nil, ErrUnauthenticated
	}

	d, err := s.store.GetDonation(ctx, donationID)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, ErrNotFound
	}
	if !d.Available() {
		return nil, nil, &AlreadyClaimedError{Status: d.Status}
	}

	claimedAt := s.now()
	won, err := s.store.ClaimDonation(ctx, d.ID, recipient.ID, claimedAt)
	if err != nil {
		return nil, nil, err
	}
	if !won {
		// Lost the race between read and write; report the winner's status.
		cur, err := s.store.GetDonation(ctx, donationID)
		if err != nil {
			return nil, nil, err
		}
		status := models.StatusClaimed
		if cur != nil {
			status = cur.Status
		}
		return nil, nil, &AlreadyClaimedError{Status: status}
	}

	d.Status = models.StatusClaimed
	d.RecipientRef = recipient.ID
	d.UpdatedAt = claimedAt

	rcpt := receipt.Build(d, recipient.Name, claimedAt)
	if qr, err := receipt.RenderQR(receipt.PayloadFor(rcpt)); err != nil {
		log.Printf("qr render failed for receipt %s (claim kept): %v", rcpt.ReceiptID, err)
	} else {
		rcpt.QRCode = qr
	}

	s.publishClaim(rcpt, d)

	return d, rcpt, nil
}

// publishClaim emits a best-effort claim event. Failures are logged, never
// returned: the claim has already committed.
func (s *Service) publishClaim(rcpt *models.Receipt, d *models.Donation) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ev := events.ClaimEvent{
		ReceiptID:    rcpt.ReceiptID,
		DonationID:   d.ID,
		DonorRef:     d.DonorRef,
		RecipientRef: d.RecipientRef,
		ClaimedAt:    rcpt.ClaimDate,
	}
	if err := s.events.PublishClaim(ctx, ev); err != nil {
		log.Printf("claim event publish failed for donation %s: %v", d.ID, err)
	}
}

// Lookup returns a single donation with its donor organization.
func (s *Service) Lookup(ctx context.Context, donationID string) (*models.Donation, error) {
	if !validID(donationID) {
		return nil, ErrInvalidID
	}
	d, err := s.store.GetDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}

// ListAvailable returns all claimable donations, newest first.
func (s *Service) ListAvailable(ctx context.Context) ([]models.Donation, error) {
	return s.store.ListAvailable(ctx)
}

// Search returns claimable donations matching the filter, newest first.
func (s *Service) Search(ctx context.Context, f store.Filter) ([]models.Donation, error) {
	return s.store.SearchAvailable(ctx, f)
}

// CreateInput is the validated donation listing request.
type CreateInput struct {
	FoodType       string
	Quantity       int
	ExpirationDate time.Time
	PickupLocation string
	Images         []string
}

// Create lists a new donation for the calling donor. Listings always start
// available with no recipient, regardless of what the request claims.
func (s *Service) Create(ctx context.Context, caller *models.Identity, in CreateInput) (*models.Donation, error) {
	if caller == nil || caller.ID == "" || caller.Role != models.RoleDonor {
		return nil, ErrUnauthenticated
	}
	if in.FoodType == "" || in.Quantity <= 0 || in.PickupLocation == "" || in.ExpirationDate.IsZero() {
		return nil, ErrInvalidInput
	}

	now := s.now()
	d := &models.Donation{
		ID:             uuid.New().String(),
		DonorRef:       caller.ID,
		FoodType:       in.FoodType,
		Quantity:       in.Quantity,
		ExpirationDate: in.ExpirationDate,
		PickupLocation: in.PickupLocation,
		Images:         append([]string(nil), in.Images...),
		Status:         models.StatusAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.Images == nil {
		d.Images = []string{}
	}

	if err := s.store.CreateDonation(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DonationsByDonor returns every listing owned by a donor, newest first.
func (s *Service) DonationsByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	return s.store.DonationsByDonor(ctx, donorID)
}
