package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	uniqueViolationErrCode = "23505"

	shortIDConstraint  = "urls_short_id_key"
	ownerURLConstraint = "urls_owner_url_key"
)

func uniqueViolationConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func isUnavailableError(err error) bool {
	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)

	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connErr) ||
		errors.As(err, &netErr)
}

func wrapError(op, msg string, err error) error {
	if isUnavailableError(err) {
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}

type urlDB struct {
	ID          int64     `db:"id"`
	ShortID     string    `db:"short_id"`
	OriginalURL string    `db:"original_url"`
	OwnerID     string    `db:"owner_id"`
	VisitCount  int64     `db:"visit_count"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortID:     u.ShortID,
		OriginalURL: u.OriginalURL,
		OwnerID:     u.OwnerID,
		URLStats: entity.URLStats{
			VisitCount: u.VisitCount,
		},
		CreatedAt: u.CreatedAt,
	}
}

type ownedURLDB struct {
	urlDB
	OwnerRef   sql.NullString `db:"owner_ref"`
	OwnerName  sql.NullString `db:"owner_name"`
	OwnerEmail sql.NullString `db:"owner_email"`
	OwnerRole  sql.NullString `db:"owner_role"`
}

func (u *ownedURLDB) toEntity() *entity.URL {
	url := u.urlDB.toEntity()
	if u.OwnerRef.Valid {
		url.Owner = &entity.User{
			ID:    u.OwnerRef.String,
			Name:  u.OwnerName.String,
			Email: u.OwnerEmail.String,
			Role:  entity.Role(u.OwnerRole.String),
		}
	}
	return url
}

type visitDB struct {
	VisitedAt time.Time `db:"visited_at"`
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts a new record. Both uniqueness rules are enforced by the table
// constraints in the same statement, so concurrent inserts cannot slip past them.
func (r *URLRepository) Save(ctx context.Context, shortID, originalURL, ownerID string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_id, original_url, owner_id) VALUES ($1, $2, $3)
		RETURNING id, short_id, original_url, owner_id, created_at`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortID, originalURL, ownerID); err != nil {
		if constraint, ok := uniqueViolationConstraint(err); ok {
			switch constraint {
			case shortIDConstraint:
				return nil, fmt.Errorf("%s: %w", op, entity.ErrShortIDExists)
			case ownerURLConstraint:
				return nil, fmt.Errorf("%s: %w", op, entity.ErrOwnerURLExists)
			}
		}

		return nil, wrapError(op, "failed to insert into urls table", err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveByOwnerAndOriginalURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByOwnerAndOriginalURL"
	const query = `SELECT u.id, u.short_id, u.original_url, u.owner_id, u.created_at,
		(SELECT COUNT(*) FROM visits v WHERE v.url_id = u.id) AS visit_count
		FROM urls u
		WHERE u.owner_id = $1 AND md5(u.original_url) = md5($2) AND u.original_url = $2`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, ownerID, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, wrapError(op, "failed to get row from urls table", err)
	}

	return url.toEntity(), nil
}

// RetrieveByShortID returns the record with its visit log, read from a single snapshot.
func (r *URLRepository) RetrieveByShortID(ctx context.Context, shortID string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortID"
	const urlQuery = `SELECT id, short_id, original_url, owner_id, created_at FROM urls WHERE short_id = $1`
	const visitsQuery = `SELECT visited_at FROM visits WHERE url_id = $1 ORDER BY id`

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, wrapError(op, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var url urlDB

	if err := tx.GetContext(ctx, &url, urlQuery, shortID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, wrapError(op, "failed to get row from urls table", err)
	}

	var visits []visitDB

	if err := tx.SelectContext(ctx, &visits, visitsQuery, url.ID); err != nil {
		return nil, wrapError(op, "failed to select rows from visits table", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapError(op, "failed to commit transaction", err)
	}

	res := url.toEntity()
	res.Visits = make([]entity.Visit, 0, len(visits))
	for _, v := range visits {
		res.Visits = append(res.Visits, entity.Visit{Timestamp: v.VisitedAt})
	}
	res.VisitCount = int64(len(res.Visits))

	return res, nil
}

// AppendVisit records a visit at the given time in one statement. The urls row
// is locked for the duration, so appends to the same record are serialized.
// The returned record does not carry the visit log.
func (r *URLRepository) AppendVisit(ctx context.Context, shortID string, at time.Time) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.AppendVisit"
	const query = `WITH target AS (
			SELECT id FROM urls WHERE short_id = $1 FOR UPDATE
		), visit AS (
			INSERT INTO visits(url_id, visited_at)
			SELECT id, $2::timestamptz FROM target
			RETURNING url_id
		)
		SELECT u.id, u.short_id, u.original_url, u.owner_id, u.created_at
		FROM urls u JOIN visit v ON v.url_id = u.id`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, wrapError(op, "failed to append visit", err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.ListByOwner"
	const query = `SELECT u.id, u.short_id, u.original_url, u.owner_id, u.created_at, COUNT(v.id) AS visit_count
		FROM urls u
		LEFT JOIN visits v ON v.url_id = u.id
		WHERE u.owner_id = $1
		GROUP BY u.id
		ORDER BY u.created_at DESC, u.id DESC`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, wrapError(op, "failed to select rows from urls table", err)
	}

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}

	return urls, nil
}

// ListAll returns every record with its owner profile joined, newest first.
func (r *URLRepository) ListAll(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.ListAll"
	const query = `SELECT u.id, u.short_id, u.original_url, u.owner_id, u.created_at, COUNT(v.id) AS visit_count,
		o.id AS owner_ref, o.name AS owner_name, o.email AS owner_email, o.role AS owner_role
		FROM urls u
		LEFT JOIN users o ON o.id = u.owner_id
		LEFT JOIN visits v ON v.url_id = u.id
		GROUP BY u.id, o.id
		ORDER BY u.created_at DESC, u.id DESC`

	var rows []ownedURLDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapError(op, "failed to select rows from urls table", err)
	}

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}

	return urls, nil
}
