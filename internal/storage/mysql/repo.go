package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"reviewdash/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---------- write paths ----------

func (r *Repo) UpsertProperty(ctx context.Context, p domain.Property) error {
	_, err := r.db.ExecContext(ctx, upsertPropertySQL,
		p.ID,
		p.Slug,
		p.Name,
		p.Location,
		valF64(p.Lat),
		valF64(p.Lon),
		valStr(p.GeoAddress),
		p.Bedrooms,
		p.Bathrooms,
		p.MaxGuests,
		p.PricePerNight,
		p.Status,
		valInt64(p.HostawayID),
		valStr(p.PlaceID),
	)
	return err
}

func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*12)
	for _, rv := range rs {
		cats, _ := json.Marshal(rv.Categories)
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.ID,
			rv.PropertyID,
			string(rv.Channel),
			string(rv.Type),
			string(rv.Status),
			rv.Approved,
			rv.Rating,
			string(cats),
			rv.Text,
			rv.GuestName,
			rv.SubmittedAt.UTC(),
			valStr(rv.ManagerNotes),
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) UpdateReview(ctx context.Context, id int64, patch domain.ReviewPatch) (domain.Review, error) {
	// Existence check first: an unknown id is NotFound with no write.
	var exists int64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM reviews WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return domain.Review{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Review{}, err
	}

	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Approved != nil {
		sets = append(sets, "approved = ?")
		args = append(args, *patch.Approved)
	}
	if patch.ManagerNotes != nil {
		sets = append(sets, "manager_notes = ?")
		args = append(args, *patch.ManagerNotes)
	}
	if patch.UpdatedBy != nil {
		sets = append(sets, "updated_by = ?")
		args = append(args, *patch.UpdatedBy)
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, "UPDATE reviews SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return domain.Review{}, err
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+reviewCols+reviewFrom+" WHERE r.id = ?", id)
	return scanReview(row)
}

func (r *Repo) SetPropertyGeo(ctx context.Context, id int64, g domain.GeoResult) error {
	res, err := r.db.ExecContext(ctx, setPropertyGeoSQL, g.Lat, g.Lon, g.Address, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) LogMiss(ctx context.Context, propertyID int64, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, propertyID, status, reason)
	return err
}

// ---------- read paths ----------

func (r *Repo) GetProperty(ctx context.Context, slugOrID string) (domain.Property, error) {
	id, _ := strconv.ParseInt(slugOrID, 10, 64)
	row := r.db.QueryRowContext(ctx, getPropertySQL, slugOrID, id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProperties(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
	q := "SELECT " + propertyCols + " FROM properties p"
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, f.Status)
	}
	if f.MissingGeo {
		conds = append(conds, "(p.lat IS NULL OR p.lon IS NULL)")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY p.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// buildReviewWhere translates a filter into conjunctive conditions,
// including the status special cases.
func buildReviewWhere(f domain.ReviewFilter) (string, []any) {
	var conds []string
	var args []any
	if f.PropertyID != nil {
		conds = append(conds, "r.property_id = ?")
		args = append(args, *f.PropertyID)
	}
	if f.MinRating != nil {
		conds = append(conds, "r.rating >= ?")
		args = append(args, *f.MinRating)
	}
	if f.Channel != nil {
		conds = append(conds, "r.channel = ?")
		args = append(args, string(*f.Channel))
	}
	switch f.Status {
	case "":
	case "approved":
		conds = append(conds, "r.approved = TRUE")
	case "pending":
		conds = append(conds, "r.approved = FALSE", "r.status = 'pending'")
	default:
		conds = append(conds, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.ApprovedOnly {
		conds = append(conds, "r.approved = TRUE")
	}
	if f.Listing != "" {
		conds = append(conds, "LOWER(p.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Listing)+"%")
	}
	if f.SubmittedAfter != nil {
		conds = append(conds, "r.submitted_at >= ?")
		args = append(args, f.SubmittedAfter.UTC())
	}
	if f.SubmittedBefore != nil {
		conds = append(conds, "r.submitted_at < ?")
		args = append(args, f.SubmittedBefore.UTC())
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repo) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	where, args := buildReviewWhere(f)
	q := "SELECT " + reviewCols + reviewFrom + where + " ORDER BY r.submitted_at DESC, r.id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) CountReviews(ctx context.Context, f domain.ReviewFilter) (int64, error) {
	where, args := buildReviewWhere(f)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+reviewFrom+where, args...).Scan(&n)
	return n, err
}

func (r *Repo) AverageRating(ctx context.Context, f domain.ReviewFilter) (float64, error) {
	where, args := buildReviewWhere(f)
	var avg float64
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(AVG(r.rating), 0)"+reviewFrom+where, args...).Scan(&avg)
	return avg, err
}

// MonthlyRollup returns the zero value when no row exists for the month;
// the stats layer treats an absent month as zero revenue/occupancy.
func (r *Repo) MonthlyRollup(ctx context.Context, month time.Time) (domain.Rollup, error) {
	out := domain.Rollup{Month: month}
	err := r.db.QueryRowContext(ctx, rollupSQL, month.Format("2006-01-02")).
		Scan(&out.RevenuePence, &out.Occupancy)
	if err == sql.ErrNoRows {
		return domain.Rollup{Month: month}, nil
	}
	return out, err
}

// ---------- scanners ----------

type rowScanner interface{ Scan(dest ...any) error }

func scanProperty(row rowScanner) (domain.Property, error) {
	var p domain.Property
	var lat, lon sql.NullFloat64
	var geoAddr, placeID sql.NullString
	var hostawayID sql.NullInt64
	if err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.Location,
		&lat, &lon, &geoAddr,
		&p.Bedrooms, &p.Bathrooms, &p.MaxGuests, &p.PricePerNight, &p.Status,
		&hostawayID, &placeID,
	); err != nil {
		return domain.Property{}, err
	}
	if lat.Valid {
		v := lat.Float64
		p.Lat = &v
	}
	if lon.Valid {
		v := lon.Float64
		p.Lon = &v
	}
	if geoAddr.Valid {
		v := geoAddr.String
		p.GeoAddress = &v
	}
	if hostawayID.Valid {
		v := hostawayID.Int64
		p.HostawayID = &v
	}
	if placeID.Valid {
		v := placeID.String
		p.PlaceID = &v
	}
	return p, nil
}

func scanReview(row rowScanner) (domain.Review, error) {
	var rv domain.Review
	var channel, typ, status string
	var catsRaw []byte
	var notes, updatedBy sql.NullString
	if err := row.Scan(
		&rv.ID, &rv.PropertyID, &rv.ListingName,
		&channel, &typ, &status, &rv.Approved,
		&rv.Rating, &catsRaw, &rv.Text, &rv.GuestName,
		&rv.SubmittedAt, &rv.UpdatedAt, &notes, &updatedBy,
	); err != nil {
		return domain.Review{}, err
	}
	rv.Channel = domain.Channel(channel)
	rv.Type = domain.ReviewType(typ)
	rv.Status = domain.Status(status)
	if len(catsRaw) > 0 {
		_ = json.Unmarshal(catsRaw, &rv.Categories)
	}
	if notes.Valid {
		v := notes.String
		rv.ManagerNotes = &v
	}
	if updatedBy.Valid {
		v := updatedBy.String
		rv.UpdatedBy = &v
	}
	return rv, nil
}
