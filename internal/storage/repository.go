// Package storage is the SQLite persistence of the development backend:
// users, activation and reset pins, login sessions, events and exchange
// rates.
package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"portfel/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

const pinAttempts = 5

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSQLiteRepository opens the database at dbPath, creating its directory
// when needed, and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser stores a new, not yet activated user. A taken username or
// email yields ErrConflict.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, firstName, passwordHash string) (User, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		FirstName:    firstName,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().Unix(),
	})
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("create user %s: %w", username, ErrConflict)
	}
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (r *SQLiteRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	n, err := r.queries.CountUsersByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("count users by username: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	n, err := r.queries.CountUsersByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	return u, notFound(err, "user "+username)
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	return u, notFound(err, "user with email")
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (User, error) {
	u, err := r.queries.GetUser(ctx, id)
	return u, notFound(err, fmt.Sprintf("user %d", id))
}

// DeleteUser removes the user with every pin, session and event.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	if err := r.queries.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	slog.InfoContext(ctx, "User deleted", "user_id", id)
	return nil
}

// IssuePin replaces any pin of the same purpose held by the user with a
// fresh random 6-digit pin valid for ttl.
func (r *SQLiteRepository) IssuePin(ctx context.Context, userID int64, purpose string, ttl time.Duration) (string, error) {
	if err := r.queries.DeletePinsForUser(ctx, userID, purpose); err != nil {
		return "", fmt.Errorf("delete old pins: %w", err)
	}
	expires := r.now().Add(ttl).Unix()
	for i := 0; i < pinAttempts; i++ {
		pin, err := randomPin()
		if err != nil {
			return "", err
		}
		err = r.queries.CreatePin(ctx, userID, purpose, pin, expires)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create pin: %w", err)
		}
		return pin, nil
	}
	return "", fmt.Errorf("create pin: %w", ErrConflict)
}

func (r *SQLiteRepository) LookupPin(ctx context.Context, purpose, pin string) (Pincode, error) {
	p, err := r.queries.GetPin(ctx, purpose, pin)
	return p, notFound(err, purpose+" pin")
}

// Activate enables the pin's user and consumes the pin.
func (r *SQLiteRepository) Activate(ctx context.Context, pin Pincode) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.EnableUser(ctx, pin.UserID); err != nil {
			return fmt.Errorf("enable user: %w", err)
		}
		if err := q.DeletePin(ctx, pin.ID); err != nil {
			return fmt.Errorf("delete pin: %w", err)
		}
		return nil
	})
}

// ResetPassword stores a new password hash for the pin's user and consumes
// the pin.
func (r *SQLiteRepository) ResetPassword(ctx context.Context, pin Pincode, passwordHash string) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.UpdatePassword(ctx, pin.UserID, passwordHash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := q.DeletePin(ctx, pin.ID); err != nil {
			return fmt.Errorf("delete pin: %w", err)
		}
		return nil
	})
}

// CreateSession opens a login session for the user valid for ttl.
func (r *SQLiteRepository) CreateSession(ctx context.Context, userID int64, ttl time.Duration) (Session, error) {
	s := Session{ID: uuid.NewString(), UserID: userID, ExpiresAt: r.now().Add(ttl)}
	if err := r.queries.CreateSession(ctx, s.ID, s.UserID, s.ExpiresAt.Unix()); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// SessionUser returns the owner of a live session.
func (r *SQLiteRepository) SessionUser(ctx context.Context, sessionID string) (User, error) {
	u, err := r.queries.GetSessionUser(ctx, sessionID, r.now().Unix())
	return u, notFound(err, "session")
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.queries.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

// AddEvent stores e for the user and returns its id.
func (r *SQLiteRepository) AddEvent(ctx context.Context, userID int64, e core.Event) (int64, error) {
	id, err := r.queries.CreateEvent(ctx, toRow(userID, e))
	if err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return id, nil
}

// AddEvents stores all events in one transaction.
func (r *SQLiteRepository) AddEvents(ctx context.Context, userID int64, events []core.Event) error {
	return r.inTx(ctx, func(q *Queries) error {
		for _, e := range events {
			if _, err := q.CreateEvent(ctx, toRow(userID, e)); err != nil {
				return fmt.Errorf("create event %q: %w", e.Title, err)
			}
		}
		return nil
	})
}

// EventsBetween lists the user's events dated within [from, to], newest
// first.
func (r *SQLiteRepository) EventsBetween(ctx context.Context, userID int64, from, to core.Date) ([]core.Event, error) {
	rows, err := r.queries.ListEventsBetween(ctx, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]core.Event, 0, len(rows))
	for _, row := range rows {
		e, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", row.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// FirstEventDate returns the date of the user's oldest event; the bool is
// false when the user has none.
func (r *SQLiteRepository) FirstEventDate(ctx context.Context, userID int64) (core.Date, bool, error) {
	s, err := r.queries.FirstEventDate(ctx, userID)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("first event date: %w", err)
	}
	if s == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, false, err
	}
	return d, true, nil
}

// LatestRates returns the two newest rate tables. With a single table prev
// equals current; with none both are empty.
func (r *SQLiteRepository) LatestRates(ctx context.Context) (prev, current []ExchangeRate, err error) {
	dates, err := r.queries.LatestRateDates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("latest rate dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, nil, nil
	}
	current, err = r.queries.RatesOn(ctx, dates[0])
	if err != nil {
		return nil, nil, fmt.Errorf("rates on %s: %w", dates[0], err)
	}
	if len(dates) == 1 {
		return current, current, nil
	}
	prev, err = r.queries.RatesOn(ctx, dates[1])
	if err != nil {
		return nil, nil, fmt.Errorf("rates on %s: %w", dates[1], err)
	}
	return prev, current, nil
}

// SaveRates upserts a rate table.
func (r *SQLiteRepository) SaveRates(ctx context.Context, rates []ExchangeRate) error {
	return r.inTx(ctx, func(q *Queries) error {
		for _, rate := range rates {
			if err := q.UpsertRate(ctx, rate); err != nil {
				return fmt.Errorf("upsert rate %s: %w", rate.Code, err)
			}
		}
		return nil
	})
}

func toRow(userID int64, e core.Event) EventRow {
	return EventRow{
		UserID:        userID,
		Title:         e.Title,
		Type:          string(e.Type),
		Amount:        e.Amount.StringFixed(2),
		Date:          e.Date.String(),
		Category:      string(e.Category),
		Description:   e.Description,
		PaymentType:   string(e.PaymentType),
		NIP:           e.NIP.String(),
		InvoiceNumber: e.InvoiceNumber.String(),
		ReceiptImage:  e.ReceiptImage,
	}
}

func fromRow(row EventRow) (core.Event, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Event{}, fmt.Errorf("amount %q: %w", row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Event{}, err
	}
	return core.Event{
		ID:            row.ID,
		Title:         row.Title,
		Type:          core.EventType(row.Type),
		Amount:        amount,
		Date:          date,
		Category:      core.Category(row.Category),
		Description:   row.Description,
		PaymentType:   core.PaymentType(row.PaymentType),
		NIP:           json.Number(row.NIP),
		InvoiceNumber: json.Number(row.InvoiceNumber),
		ReceiptImage:  row.ReceiptImage,
	}, nil
}

func randomPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
