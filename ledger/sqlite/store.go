// Package sqlite provides a SQLite-backed ledger.Ledger. Words are stored as
// 32-byte BLOBs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/internal/sqlitemigrate"
	"github.com/privfeedback/pfb/ledger"
	"github.com/privfeedback/pfb/ledger/sqlite/migrations"
)

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ ledger.Ledger = (*Store)(nil)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// Open opens a SQLite ledger and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps submission indexes dense.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func wordsFromRow(w1, w2 []byte) (cidword.Pair, error) {
	var p cidword.Pair
	if len(w1) != cidword.WordSize || len(w2) != cidword.WordSize {
		return p, fmt.Errorf("ledger row holds %d/%d byte words", len(w1), len(w2))
	}
	copy(p.Word1[:], w1)
	copy(p.Word2[:], w2)
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadService(ctx context.Context, q queryer, id ledger.ServiceID) (ledger.Service, error) {
	var (
		owner  string
		w1, w2 []byte
	)
	err := q.QueryRowContext(ctx,
		`SELECT owner, meta_word1, meta_word2 FROM services WHERE id = ?`, int64(id),
	).Scan(&owner, &w1, &w2)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Service{}, ledger.ErrUnknownService
	}
	if err != nil {
		return ledger.Service{}, fmt.Errorf("load service %d: %w", id, err)
	}
	meta, err := wordsFromRow(w1, w2)
	if err != nil {
		return ledger.Service{}, err
	}
	return ledger.Service{ID: id, Owner: owner, Metadata: meta}, nil
}

func loadState(ctx context.Context, q queryer, id ledger.ServiceID, user string) (ledger.State, error) {
	var state int
	err := q.QueryRowContext(ctx,
		`SELECT state FROM interactions WHERE service_id = ? AND user_key = ?`, int64(id), user,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.StateNone, nil
	}
	if err != nil {
		return ledger.StateNone, fmt.Errorf("load interaction: %w", err)
	}
	return ledger.State(state), nil
}

func (s *Store) RegisterService(ctx context.Context, owner string, metadata cidword.Pair) (ledger.ServiceID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ledger.ValidateIdentity("owner", owner); err != nil {
		return 0, err
	}
	if err := ledger.ValidateMetadata(metadata); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO services (owner, meta_word1, meta_word2, created_at) VALUES (?, ?, ?, ?)`,
		owner, metadata.Word1[:], metadata.Word2[:], toMillis(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("register service: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("register service: %w", err)
	}
	return ledger.ServiceID(id), nil
}

func (s *Store) Service(ctx context.Context, id ledger.ServiceID) (ledger.Service, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Service{}, err
	}
	return loadService(ctx, s.sqlDB, id)
}

func (s *Store) Services(ctx context.Context, owner string) ([]ledger.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, owner, meta_word1, meta_word2 FROM services
		 WHERE ? = '' OR owner = ?
		 ORDER BY id`, owner, owner)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []ledger.Service
	for rows.Next() {
		var (
			id     int64
			svc    ledger.Service
			w1, w2 []byte
		)
		if err := rows.Scan(&id, &svc.Owner, &w1, &w2); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		if svc.Metadata, err = wordsFromRow(w1, w2); err != nil {
			return nil, err
		}
		svc.ID = ledger.ServiceID(id)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) Invite(ctx context.Context, id ledger.ServiceID, owner, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.ValidateIdentity("user", user); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	svc, err := loadService(ctx, tx, id)
	if err != nil {
		return err
	}
	if svc.Owner != owner {
		return ledger.ErrNotOwner
	}
	state, err := loadState(ctx, tx, id, user)
	if err != nil {
		return err
	}
	switch state {
	case ledger.StateInvited:
		return nil
	case ledger.StateSubmitted:
		return ledger.ErrAlreadySubmitted
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO interactions (service_id, user_key, state, updated_at) VALUES (?, ?, ?, ?)`,
		int64(id), user, int(ledger.StateInvited), toMillis(s.now()),
	); err != nil {
		return fmt.Errorf("invite: %w", err)
	}
	return tx.Commit()
}

func (s *Store) InteractionState(ctx context.Context, id ledger.ServiceID, user string) (ledger.State, error) {
	if err := ctx.Err(); err != nil {
		return ledger.StateNone, err
	}
	if _, err := loadService(ctx, s.sqlDB, id); err != nil {
		return ledger.StateNone, err
	}
	return loadState(ctx, s.sqlDB, id, user)
}

func (s *Store) Interactions(ctx context.Context, id ledger.ServiceID) ([]ledger.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := loadService(ctx, s.sqlDB, id); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT user_key, state FROM interactions WHERE service_id = ? ORDER BY rowid`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out := []ledger.Interaction{}
	for rows.Next() {
		var (
			user  string
			state int
		)
		if err := rows.Scan(&user, &state); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, ledger.Interaction{User: user, ServiceID: id, State: ledger.State(state)})
	}
	return out, rows.Err()
}

func (s *Store) SubmitFeedback(ctx context.Context, sub ledger.Submission) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin submit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := loadService(ctx, tx, sub.ServiceID); err != nil {
		return ledger.Entry{}, err
	}
	state, err := loadState(ctx, tx, sub.ServiceID, sub.User)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := ledger.CheckTransition(state); err != nil {
		return ledger.Entry{}, err
	}
	if err := ledger.VerifySubmission(sub); err != nil {
		return ledger.Entry{}, err
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE service_id = ?`, int64(sub.ServiceID),
	).Scan(&next); err != nil {
		return ledger.Entry{}, fmt.Errorf("count feedback: %w", err)
	}
	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feedback (service_id, idx, user_key, signature, word1, word2, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(sub.ServiceID), next, sub.User, sub.Signature, sub.Feedback.Word1[:], sub.Feedback.Word2[:], now,
	); err != nil {
		return ledger.Entry{}, fmt.Errorf("record feedback: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE interactions SET state = ?, updated_at = ? WHERE service_id = ? AND user_key = ?`,
		int(ledger.StateSubmitted), now, int64(sub.ServiceID), sub.User,
	); err != nil {
		return ledger.Entry{}, fmt.Errorf("update interaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit submit: %w", err)
	}
	return ledger.Entry{Index: next, ServiceID: sub.ServiceID, User: sub.User, Feedback: sub.Feedback}, nil
}

func (s *Store) Feedback(ctx context.Context, id ledger.ServiceID) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := loadService(ctx, s.sqlDB, id); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT idx, user_key, word1, word2 FROM feedback WHERE service_id = ? ORDER BY idx`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var (
			e      ledger.Entry
			w1, w2 []byte
		)
		if err := rows.Scan(&e.Index, &e.User, &w1, &w2); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		if e.Feedback, err = wordsFromRow(w1, w2); err != nil {
			return nil, err
		}
		e.ServiceID = id
		out = append(out, e)
	}
	return out, rows.Err()
}
