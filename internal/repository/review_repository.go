package repository

import (
	"context"
	"database/sql"

	"github.com/toolshare/rental-backend/internal/model"
)

// ReviewRepo persists reviews between rental parties.
type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewColumns = `id, transaction_id, reviewer_id, reviewee_id, rating, comment, approved, created_at`

func scanReview(s rowScanner) (model.Review, error) {
	var (
		rv      model.Review
		comment sql.NullString
	)
	if err := s.Scan(&rv.ID, &rv.TransactionID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating, &comment, &rv.Approved, &rv.CreatedAt); err != nil {
		return rv, err
	}
	rv.Comment = stringPtr(comment)
	return rv, nil
}

// Create inserts rv unapproved.  A second review by the same reviewer
// for the same transaction yields ErrDuplicateReview.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (transaction_id, reviewer_id, reviewee_id, rating, comment) VALUES (?, ?, ?, ?, ?)`,
		rv.TransactionID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateReview
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanReview(r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*rv = created
	return nil
}

// ListApprovedFor returns approved reviews about userID with their
// average rating (0 when there are none).
func (r *ReviewRepo) ListApprovedFor(ctx context.Context, userID uint64) ([]model.Review, float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE reviewee_id = ? AND approved = TRUE ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Review{}
	sum := 0
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		sum += rv.Rating
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 {
		return out, 0, nil
	}
	return out, float64(sum) / float64(len(out)), nil
}

// SetApproved records a moderation decision.
func (r *ReviewRepo) SetApproved(ctx context.Context, id uint64, approved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reviews SET approved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		return notFound(r.db.QueryRowContext(ctx, `SELECT 1 FROM reviews WHERE id = ?`, id).Scan(&one), "review")
	}
	return nil
}
