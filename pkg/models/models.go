package models

import "time"

// Role distinguishes the two account types.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleRecipient Role = "recipient"
)

// DonationStatus tracks a donation through its lifecycle.
type DonationStatus string

const (
	StatusAvailable DonationStatus = "available"
	StatusClaimed   DonationStatus = "claimed"
	StatusExpired   DonationStatus = "expired"
)

// ReceiptStatus is the fixed status literal stamped onto every receipt.
const ReceiptStatus = "CLAIMED"

// User represents a registered donor or recipient account.
type User struct {
	ID           string    `json:"id" firestore:"id"`
	Email        string    `json:"email" firestore:"email"`
	EmailHash    string    `json:"-" firestore:"emailHash"`
	Name         string    `json:"name" firestore:"name"`
	Organization string    `json:"organization,omitempty" firestore:"organization"`
	Phone        string    `json:"phone,omitempty" firestore:"phone"`
	Role         Role      `json:"role" firestore:"role"`
	PasswordHash string    `json:"-" firestore:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
	LastLoginAt  time.Time `json:"lastLoginAt" firestore:"lastLoginAt"`
}

// Donation is a listed unit of surplus food.
//
// Invariant: RecipientRef is set if and only if Status is StatusClaimed.
// A donation is created available with RecipientRef unset; the only
// in-core transition is available -> claimed, and a claimed donation is
// terminal. available -> expired is produced exclusively by the expiry
// sweeper, outside the request path.
type Donation struct {
	ID             string         `json:"id" firestore:"id"`
	DonorRef       string         `json:"donorRef" firestore:"donorRef"`
	DonorOrg       string         `json:"donorOrganization,omitempty" firestore:"-"`
	FoodType       string         `json:"foodType" firestore:"foodType"`
	Quantity       int            `json:"quantity" firestore:"quantity"`
	ExpirationDate time.Time      `json:"expirationDate" firestore:"expirationDate"`
	PickupLocation string         `json:"pickupLocation" firestore:"pickupLocation"`
	Images         []string       `json:"images" firestore:"images"`
	Status         DonationStatus `json:"status" firestore:"status"`
	RecipientRef   string         `json:"recipientRef,omitempty" firestore:"recipientRef"`
	CreatedAt      time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" firestore:"updatedAt"`
}

// Available reports whether the donation can still be claimed.
func (d *Donation) Available() bool {
	return d.Status == StatusAvailable
}

// Receipt is the derived summary of a successful claim. It is assembled
// once, returned in the claim response, and never persisted; the client's
// copy of the response is the only record.
type Receipt struct {
	ReceiptID      string    `json:"receiptId"`
	DonationID     string    `json:"donationId"`
	ItemName       string    `json:"itemName"`
	Quantity       int       `json:"quantity"`
	Donor          string    `json:"donor"`
	Recipient      string    `json:"recipient"`
	PickupLocation string    `json:"pickupLocation"`
	Date           time.Time `json:"date"`
	ClaimDate      time.Time `json:"claimDate"`
	ExpiryDate     time.Time `json:"expiryDate"`
	Status         string    `json:"status"`
	QRCode         string    `json:"qrCode,omitempty"`
}

// Identity is the decoded caller context handed to the core by the auth
// middleware. The core never sees the raw bearer credential.
type Identity struct {
	ID   string
	Role Role
	Name string
}
