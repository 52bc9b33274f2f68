// Package sqlite keeps sales data in a local SQLite file. Dates are stored as
// YYYY-MM-DD text and payment times as the shop's wall-clock reading
// ("2006-01-02 15:04:05") so range predicates compare lexically and
// strftime('%H', payment_time) is the local hour.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_sales_summary (
	date           TEXT NOT NULL,
	store_name     TEXT NOT NULL,
	receipt_number TEXT NOT NULL,
	payment_time   TEXT,
	payment_type   TEXT,
	total_sales    REAL,
	total_discount REAL,
	actual_sales   REAL,
	PRIMARY KEY (store_name, receipt_number, date)
);
CREATE INDEX IF NOT EXISTS daily_sales_summary_date_idx ON daily_sales_summary (date, store_name);

CREATE TABLE IF NOT EXISTS receipt_sales_detail (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	date            TEXT NOT NULL,
	store_name      TEXT NOT NULL,
	receipt_number  TEXT NOT NULL,
	payment_type    TEXT,
	payment_time    TEXT,
	product_code    TEXT,
	product_name    TEXT NOT NULL,
	quantity        INTEGER,
	total_sales     REAL,
	discount_amount REAL,
	actual_sales    REAL,
	price           REAL
);
CREATE INDEX IF NOT EXISTS receipt_sales_detail_date_idx ON receipt_sales_detail (date, store_name);

CREATE TABLE IF NOT EXISTS app_users (
	username   TEXT    PRIMARY KEY,
	password   TEXT    NOT NULL,
	role       TEXT    NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
);
`

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func dateArg(t time.Time) any { return t.Format(domain.DateLayout) }

func parsePaymentTime(raw sql.NullString) time.Time {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return time.Time{}
	}
	for _, layout := range []string{paymentTimeLayout, "2006-01-02T15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw.String); err == nil {
			return store.WallClock(t)
		}
	}
	return time.Time{}
}

func (s *Store) ListDailySummaries(ctx context.Context, filter store.Filter) ([]domain.DailySummaryRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := filter.Where(store.Question, dateArg)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, store_name, receipt_number, payment_time, COALESCE(payment_type, ''),
		       total_sales, total_discount, actual_sales
		FROM daily_sales_summary
		WHERE `+where+`
		ORDER BY date, store_name, receipt_number
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DailySummaryRecord, 0, 256)
	for rows.Next() {
		var (
			rec                        domain.DailySummaryRecord
			day                        string
			paidAt                     sql.NullString
			total, discount, netAmount decimal.NullDecimal
		)
		if err := rows.Scan(&day, &rec.StoreName, &rec.ReceiptNumber, &paidAt, &rec.PaymentType, &total, &discount, &netAmount); err != nil {
			return nil, err
		}
		if rec.Date, err = store.ParseDay(day); err != nil {
			return nil, fmt.Errorf("summary date %q: %w", day, err)
		}
		rec.PaymentTime = parsePaymentTime(paidAt)
		rec.TotalSales = store.Money(total)
		rec.TotalDiscount = store.Money(discount)
		rec.ActualSales = store.Money(netAmount)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.Filter) ([]domain.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := filter.Where(store.Question, dateArg)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, store_name, receipt_number, COALESCE(payment_type, ''), payment_time,
		       COALESCE(product_code, ''), product_name, COALESCE(quantity, 0),
		       total_sales, discount_amount, actual_sales, price
		FROM receipt_sales_detail
		WHERE `+where+`
		ORDER BY date, store_name, receipt_number, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TransactionRecord, 0, 512)
	for rows.Next() {
		var (
			rec                               domain.TransactionRecord
			day                               string
			paidAt                            sql.NullString
			total, discount, netAmount, price decimal.NullDecimal
		)
		if err := rows.Scan(&day, &rec.StoreName, &rec.ReceiptNumber, &rec.PaymentType, &paidAt,
			&rec.ProductCode, &rec.ProductName, &rec.Quantity, &total, &discount, &netAmount, &price); err != nil {
			return nil, err
		}
		if rec.Date, err = store.ParseDay(day); err != nil {
			return nil, fmt.Errorf("detail date %q: %w", day, err)
		}
		rec.PaymentTime = parsePaymentTime(paidAt)
		rec.TotalSales = store.Money(total)
		rec.DiscountAmount = store.Money(discount)
		rec.ActualSales = store.Money(netAmount)
		rec.Price = store.Money(price)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListStores(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT store_name FROM daily_sales_summary ORDER BY store_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		stores = append(stores, name)
	}
	return stores, rows.Err()
}

const paymentTimeLayout = "2006-01-02 15:04:05"

func formatPaymentTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(paymentTimeLayout)
}

// Load replaces nothing; it appends the dataset in a single transaction and
// skips summaries that already exist.
func (s *Store) Load(ctx context.Context, summaries []domain.DailySummaryRecord, transactions []domain.TransactionRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summaryStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO daily_sales_summary (date, store_name, receipt_number, payment_time, payment_type, total_sales, total_discount, actual_sales)
		VALUES (?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return err
	}
	defer summaryStmt.Close()
	for _, r := range summaries {
		if _, err = summaryStmt.ExecContext(ctx, r.Date.Format(domain.DateLayout), r.StoreName, r.ReceiptNumber,
			formatPaymentTime(r.PaymentTime), r.PaymentType, r.TotalSales, r.TotalDiscount, r.ActualSales); err != nil {
			return fmt.Errorf("insert summary %s/%s: %w", r.StoreName, r.ReceiptNumber, err)
		}
	}

	detailStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO receipt_sales_detail (date, store_name, receipt_number, payment_type, payment_time, product_code, product_name, quantity, total_sales, discount_amount, actual_sales, price)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return err
	}
	defer detailStmt.Close()
	for _, r := range transactions {
		if _, err = detailStmt.ExecContext(ctx, r.Date.Format(domain.DateLayout), r.StoreName, r.ReceiptNumber, r.PaymentType,
			formatPaymentTime(r.PaymentTime), r.ProductCode, r.ProductName, r.Quantity, r.TotalSales, r.DiscountAmount,
			r.ActualSales, r.Price); err != nil {
			return fmt.Errorf("insert detail %s/%s: %w", r.StoreName, r.ReceiptNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("dataset loaded", zap.Int("summaries", len(summaries)), zap.Int("details", len(transactions)))
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidUser
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt.UTC().Format(time.RFC3339), now)
	if err != nil {
		if isConstraintViolation(err) {
			return store.ErrInvalidUser
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var (
			user    domain.UserAccount
			created string
		)
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			user.CreatedAt = t.UTC()
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidUser
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users SET password = ?, updated_at = ? WHERE username = ?
	`, password, time.Now().UTC().Format(time.RFC3339), username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isConstraintViolation matches on the message so the package still builds
// with the driver's cgo-less stub.
func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
