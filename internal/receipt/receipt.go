// Package receipt assembles claim receipts and renders their scannable
// QR artifact.
package receipt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/jredh-dev/surpluserve/pkg/models"
)

// qrSize is the rendered PNG edge length in pixels.
const qrSize = 256

// Payload is the exact content encoded into the QR image. Scanning the
// code at pickup yields this JSON and nothing else.
type Payload struct {
	ReceiptID      string `json:"receiptId"`
	DonationID     string `json:"donationId"`
	PickupLocation string `json:"pickupLocation"`
}

// Build assembles a receipt for a just-claimed donation. The receipt ID is
// a fresh UUID, independent of the donation ID. QRCode is left empty; the
// caller attaches it separately so a render failure cannot block assembly.
func Build(d *models.Donation, recipientName string, claimedAt time.Time) *models.Receipt {
	return &models.Receipt{
		ReceiptID:      uuid.New().String(),
		DonationID:     d.ID,
		ItemName:       d.FoodType,
		Quantity:       d.Quantity,
		Donor:          d.DonorOrg,
		Recipient:      recipientName,
		PickupLocation: d.PickupLocation,
		Date:           claimedAt,
		ClaimDate:      claimedAt,
		ExpiryDate:     d.ExpirationDate,
		Status:         models.ReceiptStatus,
	}
}

// PayloadFor extracts the QR payload from an assembled receipt.
func PayloadFor(r *models.Receipt) Payload {
	return Payload{
		ReceiptID:      r.ReceiptID,
		DonationID:     r.DonationID,
		PickupLocation: r.PickupLocation,
	}
}

// RenderQR encodes the payload as a PNG QR code and returns it as a
// data URL suitable for an <img> src.
func RenderQR(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
