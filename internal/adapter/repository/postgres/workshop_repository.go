package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

const workshopColumns = `id, name, street, zip_code, city, concepts, email, phone, website, latitude, longitude, relationships, created_at, updated_at`

// WorkshopRepository implements domain.WorkshopRepository using PostgreSQL.
type WorkshopRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkshopRepository creates a new PostgreSQL workshop repository.
func NewWorkshopRepository(db *sql.DB, logger *slog.Logger) *WorkshopRepository {
	return &WorkshopRepository{db: db, logger: logger}
}

// List returns one page of workshops ordered by name plus the total match count.
func (r *WorkshopRepository) List(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) ([]domain.Workshop, int, error) {
	where, args := buildWorkshopWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workshops`+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(ctx, "count workshops", err)
	}
	if total == 0 || page.Offset >= total {
		return []domain.Workshop{}, total, nil
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM workshops%s ORDER BY name, id LIMIT $%d OFFSET $%d`, workshopColumns, where, n+1, n+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(ctx, "list workshops", err)
	}
	defer rows.Close()

	workshops, err := scanWorkshops(rows)
	if err != nil {
		return nil, 0, translate(ctx, "list workshops", err)
	}
	return workshops, total, nil
}

// Get returns the workshop with id.
func (r *WorkshopRepository) Get(ctx context.Context, id string) (*domain.Workshop, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workshopColumns+` FROM workshops WHERE id = $1`, id)
	if err != nil {
		return nil, translate(ctx, "get workshop", err)
	}
	defer rows.Close()

	workshops, err := scanWorkshops(rows)
	if err != nil {
		return nil, translate(ctx, "get workshop", err)
	}
	if len(workshops) == 0 {
		return nil, translate(ctx, "get workshop", sql.ErrNoRows)
	}
	return &workshops[0], nil
}

// ListByIDs returns the workshops whose id is in ids, ordered by name.
func (r *WorkshopRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Workshop, error) {
	if len(ids) == 0 {
		return []domain.Workshop{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+workshopColumns+` FROM workshops WHERE id = ANY($1) ORDER BY name, id`, pq.Array(ids))
	if err != nil {
		return nil, translate(ctx, "list workshops by id", err)
	}
	defer rows.Close()

	workshops, err := scanWorkshops(rows)
	if err != nil {
		return nil, translate(ctx, "list workshops by id", err)
	}
	return workshops, nil
}

// buildWorkshopWhere renders the filter as a WHERE clause with positional args.
func buildWorkshopWhere(f domain.WorkshopFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + escapeLike(s) + "%")
		conds = append(conds, fmt.Sprintf(`(name ILIKE %[1]s OR city ILIKE %[1]s OR zip_code ILIKE %[1]s)`, p))
	}
	if f.City != "" {
		conds = append(conds, "city = "+next(f.City))
	}
	if f.ZipCode != "" {
		conds = append(conds, "zip_code = "+next(f.ZipCode))
	}
	if f.Concept != "" {
		conds = append(conds, next(f.Concept)+" = ANY(concepts)")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike escapes the ILIKE wildcards in s. Backslash is the default escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanWorkshops(rows *sql.Rows) ([]domain.Workshop, error) {
	workshops := []domain.Workshop{}
	for rows.Next() {
		var (
			w             domain.Workshop
			concepts      pq.StringArray
			emails        pq.StringArray
			lat, lng      sql.NullFloat64
			relationships []byte
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Street, &w.ZipCode, &w.City, &concepts, &emails,
			&w.Phone, &w.Website, &lat, &lng, &relationships, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Concepts = []string(concepts)
		w.Email = []string(emails)
		if lat.Valid {
			w.Latitude = &lat.Float64
		}
		if lng.Valid {
			w.Longitude = &lng.Float64
		}
		if len(relationships) > 0 {
			if err := json.Unmarshal(relationships, &w.Relationships); err != nil {
				return nil, fmt.Errorf("decode relationships of workshop %s: %w", w.ID, err)
			}
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}
