package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_sales_summary (
	date           date          NOT NULL,
	store_name     text          NOT NULL,
	receipt_number text          NOT NULL,
	payment_time   timestamp,
	payment_type   text,
	total_sales    numeric(14,2),
	total_discount numeric(14,2),
	actual_sales   numeric(14,2),
	PRIMARY KEY (store_name, receipt_number, date)
);
CREATE INDEX IF NOT EXISTS daily_sales_summary_date_idx ON daily_sales_summary (date, store_name);

CREATE TABLE IF NOT EXISTS receipt_sales_detail (
	id              bigserial     PRIMARY KEY,
	date            date          NOT NULL,
	store_name      text          NOT NULL,
	receipt_number  text          NOT NULL,
	payment_type    text,
	payment_time    timestamp,
	product_code    text,
	product_name    text          NOT NULL,
	quantity        integer,
	total_sales     numeric(14,2),
	discount_amount numeric(14,2),
	actual_sales    numeric(14,2),
	price           numeric(14,2)
);
CREATE INDEX IF NOT EXISTS receipt_sales_detail_date_idx ON receipt_sales_detail (date, store_name);

CREATE TABLE IF NOT EXISTS app_users (
	username   text        PRIMARY KEY,
	password   text        NOT NULL,
	role       text        NOT NULL,
	active     boolean     NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL
);
`

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func dateArg(t time.Time) any { return t }

func (s *Store) ListDailySummaries(ctx context.Context, filter store.Filter) ([]domain.DailySummaryRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := filter.Where(store.Dollar, dateArg)

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), store_name, receipt_number, payment_time,
		       COALESCE(payment_type, ''), total_sales, total_discount, actual_sales
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
			paidAt                     sql.NullTime
			total, discount, netAmount decimal.NullDecimal
		)
		if err := rows.Scan(&day, &rec.StoreName, &rec.ReceiptNumber, &paidAt, &rec.PaymentType, &total, &discount, &netAmount); err != nil {
			return nil, err
		}
		if rec.Date, err = store.ParseDay(day); err != nil {
			return nil, fmt.Errorf("summary date %q: %w", day, err)
		}
		if paidAt.Valid {
			rec.PaymentTime = store.WallClock(paidAt.Time)
		}
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
	where, args := filter.Where(store.Dollar, dateArg)

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), store_name, receipt_number, COALESCE(payment_type, ''),
		       payment_time, COALESCE(product_code, ''), product_name, COALESCE(quantity, 0),
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
			rec                                domain.TransactionRecord
			day                                string
			paidAt                             sql.NullTime
			total, discount, netAmount, price decimal.NullDecimal
		)
		if err := rows.Scan(&day, &rec.StoreName, &rec.ReceiptNumber, &rec.PaymentType, &paidAt,
			&rec.ProductCode, &rec.ProductName, &rec.Quantity, &total, &discount, &netAmount, &price); err != nil {
			return nil, err
		}
		if rec.Date, err = store.ParseDay(day); err != nil {
			return nil, fmt.Errorf("detail date %q: %w", day, err)
		}
		if paidAt.Valid {
			rec.PaymentTime = store.WallClock(paidAt.Time)
		}
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT store_name
		FROM daily_sales_summary
		ORDER BY store_name
	`)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stores, nil
}

// paymentTimeArg binds a payment time to a timestamp (without time zone)
// column as the shop's wall-clock reading.
func paymentTimeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return store.WallClock(t)
}

// Load inserts a dataset in one transaction.
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
		INSERT INTO daily_sales_summary (date, store_name, receipt_number, payment_time, payment_type, total_sales, total_discount, actual_sales)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (store_name, receipt_number, date) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer summaryStmt.Close()
	for _, r := range summaries {
		if _, err = summaryStmt.ExecContext(ctx, r.Date, r.StoreName, r.ReceiptNumber, paymentTimeArg(r.PaymentTime), r.PaymentType,
			decimal.NewFromFloat(r.TotalSales), decimal.NewFromFloat(r.TotalDiscount), decimal.NewFromFloat(r.ActualSales)); err != nil {
			return fmt.Errorf("insert summary %s/%s: %w", r.StoreName, r.ReceiptNumber, err)
		}
	}

	detailStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO receipt_sales_detail (date, store_name, receipt_number, payment_type, payment_time, product_code, product_name, quantity, total_sales, discount_amount, actual_sales, price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`)
	if err != nil {
		return err
	}
	defer detailStmt.Close()
	for _, r := range transactions {
		if _, err = detailStmt.ExecContext(ctx, r.Date, r.StoreName, r.ReceiptNumber, r.PaymentType, paymentTimeArg(r.PaymentTime),
			r.ProductCode, r.ProductName, r.Quantity, decimal.NewFromFloat(r.TotalSales), decimal.NewFromFloat(r.DiscountAmount),
			decimal.NewFromFloat(r.ActualSales), decimal.NewFromFloat(r.Price)); err != nil {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
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
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
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
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
