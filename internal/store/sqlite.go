package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jredh-dev/surpluserve/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT UNIQUE NOT NULL,
	email_hash    TEXT UNIQUE NOT NULL,
	name          TEXT NOT NULL,
	organization  TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	last_login_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_email_hash ON users(email_hash);

CREATE TABLE IF NOT EXISTS donations (
	id              TEXT PRIMARY KEY,
	donor_id        TEXT NOT NULL REFERENCES users(id),
	food_type       TEXT NOT NULL,
	quantity        INTEGER NOT NULL,
	expiration_date DATETIME NOT NULL,
	pickup_location TEXT NOT NULL,
	images          TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL DEFAULT 'available',
	recipient_id    TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_donations_status     ON donations(status);
CREATE INDEX IF NOT EXISTS idx_donations_donor_id   ON donations(donor_id);
CREATE INDEX IF NOT EXISTS idx_donations_created_at ON donations(created_at);
`

// OpenSQLite creates or opens the SQLite database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// --- Account operations ---

const userColumns = `id, email, email_hash, name, organization, phone, role, password_hash, created_at, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailHash, &u.Name, &u.Organization, &u.Phone,
		&u.Role, &u.PasswordHash, &u.CreatedAt, &u.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// CreateUser inserts a new account.
func (s *SQLite) CreateUser(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (id, email, email_hash, name, organization, phone, role, password_hash, created_at, last_login_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.conn.ExecContext(ctx, q,
		u.ID, u.Email, u.EmailHash, u.Name, u.Organization, u.Phone,
		u.Role, u.PasswordHash, u.CreatedAt, u.LastLoginAt,
	)
	return err
}

// GetUserByID looks up an account by ID.
func (s *SQLite) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.conn.QueryRowContext(ctx, q, id))
}

// GetUserByEmailHash looks up an account by normalized email hash.
func (s *SQLite) GetUserByEmailHash(ctx context.Context, hash string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email_hash = ?`
	return scanUser(s.conn.QueryRowContext(ctx, q, hash))
}

// UpdateLastLogin sets the last_login_at timestamp.
func (s *SQLite) UpdateLastLogin(ctx context.Context, userID string, t time.Time) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, t, userID)
	return err
}

// --- Donation operations ---

// donationColumns joins the donor's organization so reads come back
// annotated without a second round-trip.
const donationColumns = `d.id, d.donor_id, d.food_type, d.quantity, d.expiration_date,
	d.pickup_location, d.images, d.status, d.recipient_id, d.created_at, d.updated_at,
	u.organization`

func scanDonation(row interface{ Scan(...interface{}) error }) (*models.Donation, error) {
	d := &models.Donation{}
	var images string
	err := row.Scan(
		&d.ID, &d.DonorRef, &d.FoodType, &d.Quantity, &d.ExpirationDate,
		&d.PickupLocation, &images, &d.Status, &d.RecipientRef,
		&d.CreatedAt, &d.UpdatedAt, &d.DonorOrg,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &d.Images); err != nil {
		return nil, fmt.Errorf("decode images for donation %s: %w", d.ID, err)
	}
	return d, nil
}

// CreateDonation inserts a new donation.
func (s *SQLite) CreateDonation(ctx context.Context, d *models.Donation) error {
	images, err := json.Marshal(d.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	const q = `INSERT INTO donations (id, donor_id, food_type, quantity, expiration_date, pickup_location, images, status, recipient_id, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.conn.ExecContext(ctx, q,
		d.ID, d.DonorRef, d.FoodType, d.Quantity, d.ExpirationDate,
		d.PickupLocation, string(images), d.Status, d.RecipientRef,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

// GetDonation returns a donation by ID with its donor organization.
func (s *SQLite) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations d JOIN users u ON u.id = d.donor_id WHERE d.id = ?`
	return scanDonation(s.conn.QueryRowContext(ctx, q, id))
}

// ListAvailable returns all available donations, newest first.
func (s *SQLite) ListAvailable(ctx context.Context) ([]models.Donation, error) {
	return s.SearchAvailable(ctx, Filter{})
}

// SearchAvailable returns available donations matching the filter, newest
// first. An empty filter matches everything available.
func (s *SQLite) SearchAvailable(ctx context.Context, f Filter) ([]models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations d JOIN users u ON u.id = d.donor_id WHERE d.status = ?`
	args := []interface{}{string(models.StatusAvailable)}

	if f.FoodType != "" {
		q += ` AND instr(lower(d.food_type), lower(?)) > 0`
		args = append(args, f.FoodType)
	}
	if f.MinQuantity > 0 {
		q += ` AND d.quantity >= ?`
		args = append(args, f.MinQuantity)
	}
	q += ` ORDER BY d.created_at DESC`

	return s.queryDonations(ctx, q, args...)
}

// DonationsByDonor returns every donation owned by a donor, newest first.
func (s *SQLite) DonationsByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations d JOIN users u ON u.id = d.donor_id
	      WHERE d.donor_id = ? ORDER BY d.created_at DESC`
	return s.queryDonations(ctx, q, donorID)
}

// ClaimDonation atomically transitions a donation from available to
// claimed. The status check is part of the UPDATE itself, so two
// concurrent claimants cannot both win: the loser sees zero rows affected.
func (s *SQLite) ClaimDonation(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	const q = `UPDATE donations SET status = ?, recipient_id = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := s.conn.ExecContext(ctx, q,
		string(models.StatusClaimed), recipientID, at,
		id, string(models.StatusAvailable),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireDonations marks available donations past their expiration date as
// expired and returns the number of rows moved.
func (s *SQLite) ExpireDonations(ctx context.Context, asOf time.Time) (int64, error) {
	const q = `UPDATE donations SET status = ?, updated_at = ?
	           WHERE status = ? AND expiration_date < ?`
	res, err := s.conn.ExecContext(ctx, q,
		string(models.StatusExpired), asOf,
		string(models.StatusAvailable), asOf,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) queryDonations(ctx context.Context, query string, args ...interface{}) ([]models.Donation, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []models.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}
