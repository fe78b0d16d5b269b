package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements of the development backend.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const userColumns = `id, username, email, first_name, password_hash, enabled, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var enabled, created int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.PasswordHash, &enabled, &created)
	u.Enabled = enabled != 0
	u.CreatedAt = unixTime(created)
	return u, err
}

type CreateUserParams struct {
	Username     string
	Email        string
	FirstName    string
	PasswordHash string
	CreatedAt    int64
}

const createUser = `INSERT INTO users (username, email, first_name, password_hash, enabled, created_at)
VALUES (?, ?, ?, ?, 0, ?)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Username, arg.Email, arg.FirstName, arg.PasswordHash, arg.CreatedAt)
	return scanUser(row)
}

const getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const countUsersByUsername = `SELECT COUNT(*) FROM users WHERE username = ?`

func (q *Queries) CountUsersByUsername(ctx context.Context, username string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsersByUsername, username).Scan(&n)
	return n, err
}

const countUsersByEmail = `SELECT COUNT(*) FROM users WHERE email = ?`

func (q *Queries) CountUsersByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsersByEmail, email).Scan(&n)
	return n, err
}

const enableUser = `UPDATE users SET enabled = 1 WHERE id = ?`

func (q *Queries) EnableUser(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, enableUser, id)
	return err
}

const updatePassword = `UPDATE users SET password_hash = ? WHERE id = ?`

func (q *Queries) UpdatePassword(ctx context.Context, id int64, hash string) error {
	_, err := q.db.ExecContext(ctx, updatePassword, hash, id)
	return err
}

const deleteUser = `DELETE FROM users WHERE id = ?`

func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}

const deletePinsForUser = `DELETE FROM pincodes WHERE user_id = ? AND purpose = ?`

func (q *Queries) DeletePinsForUser(ctx context.Context, userID int64, purpose string) error {
	_, err := q.db.ExecContext(ctx, deletePinsForUser, userID, purpose)
	return err
}

const createPin = `INSERT INTO pincodes (user_id, purpose, pin, expires_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreatePin(ctx context.Context, userID int64, purpose, pin string, expiresAt int64) error {
	_, err := q.db.ExecContext(ctx, createPin, userID, purpose, pin, expiresAt)
	return err
}

const getPin = `SELECT id, user_id, purpose, pin, expires_at FROM pincodes WHERE purpose = ? AND pin = ?`

func (q *Queries) GetPin(ctx context.Context, purpose, pin string) (Pincode, error) {
	var p Pincode
	var expires int64
	err := q.db.QueryRowContext(ctx, getPin, purpose, pin).Scan(&p.ID, &p.UserID, &p.Purpose, &p.Pin, &expires)
	p.ExpiresAt = unixTime(expires)
	return p, err
}

const deletePin = `DELETE FROM pincodes WHERE id = ?`

func (q *Queries) DeletePin(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePin, id)
	return err
}

const createSession = `INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`

func (q *Queries) CreateSession(ctx context.Context, id string, userID, expiresAt int64) error {
	_, err := q.db.ExecContext(ctx, createSession, id, userID, expiresAt)
	return err
}

const getSessionUser = `SELECT u.id, u.username, u.email, u.first_name, u.password_hash, u.enabled, u.created_at
FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.id = ? AND s.expires_at > ?`

func (q *Queries) GetSessionUser(ctx context.Context, id string, now int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getSessionUser, id, now))
}

const deleteSession = `DELETE FROM sessions WHERE id = ?`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type EventRow struct {
	ID            int64
	UserID        int64
	Title         string
	Type          string
	Amount        string
	Date          string
	Category      string
	Description   string
	PaymentType   string
	NIP           string
	InvoiceNumber string
	ReceiptImage  string
}

const createEvent = `INSERT INTO events (user_id, title, type, amount, date, category, description, payment_type, nip, invoice_number, receipt_image)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateEvent(ctx context.Context, e EventRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, createEvent,
		e.UserID, e.Title, e.Type, e.Amount, e.Date, e.Category,
		e.Description, e.PaymentType, e.NIP, e.InvoiceNumber, e.ReceiptImage)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listEventsBetween = `SELECT id, user_id, title, type, amount, date, category, description, payment_type, nip, invoice_number, receipt_image
FROM events
WHERE user_id = ? AND date >= ? AND date <= ?
ORDER BY date DESC, id DESC`

func (q *Queries) ListEventsBetween(ctx context.Context, userID int64, from, to string) ([]EventRow, error) {
	rows, err := q.db.QueryContext(ctx, listEventsBetween, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Type, &e.Amount, &e.Date, &e.Category,
			&e.Description, &e.PaymentType, &e.NIP, &e.InvoiceNumber, &e.ReceiptImage); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const firstEventDate = `SELECT COALESCE(MIN(date), '') FROM events WHERE user_id = ?`

func (q *Queries) FirstEventDate(ctx context.Context, userID int64) (string, error) {
	var d string
	err := q.db.QueryRowContext(ctx, firstEventDate, userID).Scan(&d)
	return d, err
}

const latestRateDates = `SELECT DISTINCT insert_date FROM exchange_rates ORDER BY insert_date DESC LIMIT 2`

func (q *Queries) LatestRateDates(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, latestRateDates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

const ratesOn = `SELECT insert_date, code, rate FROM exchange_rates WHERE insert_date = ? ORDER BY id`

func (q *Queries) RatesOn(ctx context.Context, date string) ([]ExchangeRate, error) {
	rows, err := q.db.QueryContext(ctx, ratesOn, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExchangeRate
	for rows.Next() {
		var r ExchangeRate
		if err := rows.Scan(&r.InsertDate, &r.Code, &r.Rate); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const upsertRate = `INSERT INTO exchange_rates (insert_date, code, rate) VALUES (?, ?, ?)
ON CONFLICT (insert_date, code) DO UPDATE SET rate = excluded.rate`

func (q *Queries) UpsertRate(ctx context.Context, r ExchangeRate) error {
	_, err := q.db.ExecContext(ctx, upsertRate, r.InsertDate, r.Code, r.Rate)
	return err
}
