package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"adgen/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Fixed-width timestamps keep lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const adColumns = `id, owner_id, status, prompt, target_audience, brand_info, style, locale, artifact_url, failure_reason, created_at, updated_at`

// AdStore implements domain.AdRepository on a single SQLite file.
type AdStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and runs pending migrations.
// Pass ":memory:" for an in-memory database.
func Open(path string) (*AdStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &AdStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *AdStore) Close() error {
	return s.db.Close()
}

func (s *AdStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, formatTime(s.now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// Create inserts a new ad; an existing id yields domain.ErrConflict.
func (s *AdStore) Create(ctx context.Context, ad *domain.Ad) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO ads (`+adColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, adArgs(ad)...)
	if err != nil {
		return fmt.Errorf("inserting ad: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting ad: %w", err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Put upserts the full record.
func (s *AdStore) Put(ctx context.Context, ad *domain.Ad) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ads (`+adColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			status = excluded.status,
			prompt = excluded.prompt,
			target_audience = excluded.target_audience,
			brand_info = excluded.brand_info,
			style = excluded.style,
			locale = excluded.locale,
			artifact_url = excluded.artifact_url,
			failure_reason = excluded.failure_reason,
			updated_at = excluded.updated_at`, adArgs(ad)...)
	if err != nil {
		return fmt.Errorf("upserting ad: %w", err)
	}
	return nil
}

func (s *AdStore) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id)
	ad, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting ad: %w", err)
	}
	return ad, nil
}

func (s *AdStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+adColumns+` FROM ads
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing ads by owner: %w", err)
	}
	return collect(rows)
}

func (s *AdStore) ListByStatus(ctx context.Context, status domain.AdStatus, olderThan time.Time, limit int) ([]domain.Ad, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+adColumns+` FROM ads
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?`, string(status), formatTime(olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("listing ads by status: %w", err)
	}
	return collect(rows)
}

func (s *AdStore) MarkCompleted(ctx context.Context, id, artifactURL string) error {
	return s.transition(ctx, `UPDATE ads
		SET status = 'completed', artifact_url = ?, failure_reason = '', updated_at = ?
		WHERE id = ? AND status = 'pending'`, id, artifactURL, formatTime(s.now()), id)
}

func (s *AdStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, `UPDATE ads
		SET status = 'failed', failure_reason = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`, id, reason, formatTime(s.now()), id)
}

func (s *AdStore) transition(ctx context.Context, query, id string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating ad status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating ad status: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAd(row scanner) (*domain.Ad, error) {
	var ad domain.Ad
	var status, createdAt, updatedAt string
	if err := row.Scan(
		&ad.ID, &ad.OwnerID, &status, &ad.Prompt, &ad.TargetAudience, &ad.BrandInfo,
		&ad.Style, &ad.Locale, &ad.ArtifactURL, &ad.FailureReason, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	ad.Status = domain.AdStatus(status)
	var err error
	if ad.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if ad.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &ad, nil
}

func collect(rows *sql.Rows) ([]domain.Ad, error) {
	defer rows.Close()
	ads := make([]domain.Ad, 0)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *ad)
	}
	return ads, rows.Err()
}

func adArgs(ad *domain.Ad) []any {
	return []any{
		ad.ID, ad.OwnerID, string(ad.Status), ad.Prompt, ad.TargetAudience, ad.BrandInfo,
		ad.Style, ad.Locale, ad.ArtifactURL, ad.FailureReason,
		formatTime(ad.CreatedAt), formatTime(ad.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

var _ domain.AdRepository = (*AdStore)(nil)
