// Package tokencache persists the identity provider's token cache in a
// local sqlite database so a restarted client comes back signed in.
package tokencache

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/clubhub/go-session/provider/restidp"
)

// Record is the single-row token cache model.
type Record struct {
	bun.BaseModel `bun:"table:session_tokens,alias:tok"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	IdentityID    string     `bun:"identity_id,notnull" json:"identity_id,omitempty"`
	Email         string     `bun:"email" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	PhotoURL      string     `bun:"photo_url" json:"photo_url,omitempty"`
	IDToken       string     `bun:"id_token" json:"-"`
	RefreshToken  string     `bun:"refresh_token,notnull" json:"-"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Store implements restidp.TokenCache over bun/sqlite.
type Store struct {
	db *bun.DB
}

// Open opens (or creates) the cache database at dsn. Use "file::memory:?cache=shared"
// for an ephemeral cache.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open token cache database")
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	query := s.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists()
	if _, err := query.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create token cache table")
	}
	return nil
}

// Load implements restidp.TokenCache.
func (s *Store) Load(ctx context.Context) (*restidp.CachedSession, error) {
	record := new(Record)
	err := s.db.NewSelect().
		Model(record).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load token cache")
	}

	return &restidp.CachedSession{
		IdentityID:   record.IdentityID,
		Email:        record.Email,
		DisplayName:  record.DisplayName,
		PhotoURL:     record.PhotoURL,
		IDToken:      record.IDToken,
		RefreshToken: record.RefreshToken,
	}, nil
}

// Save implements restidp.TokenCache. The cache holds at most one session.
func (s *Store) Save(ctx context.Context, cached *restidp.CachedSession) error {
	if cached == nil {
		return s.Clear(ctx)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Record)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to reset token cache")
		}

		now := time.Now()
		record := &Record{
			IdentityID:   cached.IdentityID,
			Email:        cached.Email,
			DisplayName:  cached.DisplayName,
			PhotoURL:     cached.PhotoURL,
			IDToken:      cached.IDToken,
			RefreshToken: cached.RefreshToken,
			UpdatedAt:    &now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to save token cache")
		}
		return nil
	})
}

// Clear implements restidp.TokenCache.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.NewDelete().Model((*Record)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to clear token cache")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ restidp.TokenCache = (*Store)(nil)
