package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/toolshare/rental-backend/internal/model"
)

// ListingRepo persists listings and their images.
type ListingRepo struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// ListingFilter narrows Browse.  When Lat and Lng are both set only
// listings within RadiusKm are returned, nearest first.
type ListingFilter struct {
	Lat      *float64
	Lng      *float64
	RadiusKm float64
	Query    string
	Limit    int
	Offset   int
}

const listingColumns = `l.id, l.owner_id, l.title, l.description, l.hourly_price_cents, l.daily_price_cents,
	l.security_deposit_cents, l.latitude, l.longitude, l.is_available, l.is_approved, l.created_at, l.updated_at`

// haversineKm is the great-circle distance in km between the bound
// point (lat, lat, lng) and the listing row.
const haversineKm = `6371 * 2 * ASIN(SQRT(
	POWER(SIN(RADIANS(l.latitude - ?) / 2), 2) +
	COS(RADIANS(?)) * COS(RADIANS(l.latitude)) * POWER(SIN(RADIANS(l.longitude - ?) / 2), 2)))`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner, extra ...any) (model.Listing, error) {
	var (
		l        model.Listing
		lat, lng sql.NullFloat64
	)
	dest := []any{&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.HourlyPriceCents, &l.DailyPriceCents,
		&l.SecurityDepositCents, &lat, &lng, &l.IsAvailable, &l.IsApproved, &l.CreatedAt, &l.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return l, err
	}
	if lat.Valid && lng.Valid {
		l.Latitude, l.Longitude = &lat.Float64, &lng.Float64
	}
	l.Images = []string{}
	return l, nil
}

// Create inserts l and fills in its ID.  New listings start available
// and unapproved.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	const q = `INSERT INTO listings (owner_id, title, description, hourly_price_cents, daily_price_cents,
		security_deposit_cents, latitude, longitude, is_available, is_approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, FALSE)`
	res, err := r.db.ExecContext(ctx, q, l.OwnerID, l.Title, l.Description, l.HourlyPriceCents,
		l.DailyPriceCents, l.SecurityDepositCents, l.Latitude, l.Longitude)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*l = created
	return nil
}

// GetByID loads a listing with its images.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings l WHERE l.id = ?`, id)
	l, err := scanListing(row)
	if err != nil {
		return l, notFound(err, "listing")
	}
	if err := r.attachImages(ctx, []*model.Listing{&l}); err != nil {
		return l, err
	}
	return l, nil
}

// LockForUpdateTx reads the listing row with an exclusive lock held
// until tx ends.  Every booking write for the listing takes this lock
// first, which serializes overlap checks per listing.
func (r *ListingRepo) LockForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Listing, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings l WHERE l.id = ? FOR UPDATE`, id)
	l, err := scanListing(row)
	return l, notFound(err, "listing")
}

// Browse returns bookable listings matching f.
func (r *ListingRepo) Browse(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	var (
		sb   strings.Builder
		args []any
	)
	nearby := f.Lat != nil && f.Lng != nil
	sb.WriteString(`SELECT ` + listingColumns)
	if nearby {
		sb.WriteString(`, ` + haversineKm + ` AS distance_km`)
		args = append(args, *f.Lat, *f.Lat, *f.Lng)
	}
	sb.WriteString(` FROM listings l WHERE l.is_available = TRUE AND l.is_approved = TRUE`)
	if q := strings.TrimSpace(f.Query); q != "" {
		sb.WriteString(` AND (l.title LIKE ? OR l.description LIKE ?)`)
		like := "%" + escapeLike(q) + "%"
		args = append(args, like, like)
	}
	if nearby {
		sb.WriteString(` AND l.latitude IS NOT NULL AND l.longitude IS NOT NULL HAVING distance_km <= ? ORDER BY distance_km, l.id`)
		args = append(args, f.RadiusKm)
	} else {
		sb.WriteString(` ORDER BY l.created_at DESC, l.id DESC`)
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Listing, 0, f.Limit)
	for rows.Next() {
		var (
			l    model.Listing
			dist float64
		)
		if nearby {
			l, err = scanListing(rows, &dist)
			l.DistanceKm = &dist
		} else {
			l, err = scanListing(rows)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ptrs := make([]*model.Listing, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	return out, r.attachImages(ctx, ptrs)
}

// Update writes the owner-editable columns of l.
func (r *ListingRepo) Update(ctx context.Context, l *model.Listing) error {
	const q = `UPDATE listings SET title = ?, description = ?, hourly_price_cents = ?, daily_price_cents = ?,
		security_deposit_cents = ?, latitude = ?, longitude = ?, is_available = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, l.Title, l.Description, l.HourlyPriceCents, l.DailyPriceCents,
		l.SecurityDepositCents, l.Latitude, l.Longitude, l.IsAvailable, l.ID); err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	*l = fresh
	return nil
}

// SetApproved records a moderation decision.
func (r *ListingRepo) SetApproved(ctx context.Context, id uint64, approved bool) error {
	return r.execOne(ctx, `UPDATE listings SET is_approved = ? WHERE id = ?`, approved, id)
}

// Deactivate hides a listing from browsing and booking.  Rows are never
// hard-deleted so reservation history keeps its foreign keys.
func (r *ListingRepo) Deactivate(ctx context.Context, id uint64) error {
	return r.execOne(ctx, `UPDATE listings SET is_available = FALSE WHERE id = ?`, id)
}

// AddImage appends an image URL to a listing.
func (r *ListingRepo) AddImage(ctx context.Context, listingID uint64, url string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO listing_images (listing_id, url) VALUES (?, ?)`, listingID, url)
	return err
}

func (r *ListingRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when values are unchanged, so only a
	// missing row is treated as an error.
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ?`, args[len(args)-1]).Scan(&one)
		return notFound(err, "listing")
	}
	return nil
}

func (r *ListingRepo) attachImages(ctx context.Context, ls []*model.Listing) error {
	if len(ls) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Listing, len(ls))
	args := make([]any, 0, len(ls))
	for _, l := range ls {
		byID[l.ID] = l
		args = append(args, l.ID)
	}
	q := `SELECT listing_id, url FROM listing_images WHERE listing_id IN (` + placeholders(len(args)) + `) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  uint64
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return err
		}
		if l := byID[id]; l != nil {
			l.Images = append(l.Images, url)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
