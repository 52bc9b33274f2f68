package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retailpulse/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidUser   = errors.New("invalid user")
)

// Filter selects rows on an inclusive date window and an optional store set.
// An empty Stores slice means every store.
type Filter struct {
	From   time.Time
	To     time.Time
	Stores []string
}

func (f Filter) Validate() error {
	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("%w: date window is required", ErrInvalidFilter)
	}
	if f.From.After(f.To) {
		return fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	for _, name := range f.Stores {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty store name", ErrInvalidFilter)
		}
	}
	return nil
}

// Matches reports whether a row on day for storeName passes the filter.
func (f Filter) Matches(day time.Time, storeName string) bool {
	if day.Before(f.From) || day.After(f.To) {
		return false
	}
	if len(f.Stores) == 0 {
		return true
	}
	for _, name := range f.Stores {
		if name == storeName {
			return true
		}
	}
	return false
}

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

func Dollar(n int) string { return "$" + strconv.Itoa(n) }

func Question(int) string { return "?" }

// Where renders the date and store predicates for f. dateArg converts the
// window bounds into driver arguments.
func (f Filter) Where(ph Placeholder, dateArg func(time.Time) any) (string, []any) {
	args := []any{dateArg(f.From), dateArg(f.To)}
	clause := "date >= " + ph(1) + " AND date <= " + ph(2)
	if len(f.Stores) == 0 {
		return clause, args
	}

	marks := make([]string, len(f.Stores))
	for i, name := range f.Stores {
		args = append(args, name)
		marks[i] = ph(len(args))
	}
	return clause + " AND store_name IN (" + strings.Join(marks, ", ") + ")", args
}

// Money converts a nullable numeric column to float64. NULL reads as zero.
func Money(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.InexactFloat64()
}

// WallClock keeps the clock reading of t and drops its zone. Payment times
// are stored this way so a receipt stays in the hour the shop rang it up,
// whatever zone the database or process runs in.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseDay reads a YYYY-MM-DD column value.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(domain.DateLayout) {
		raw = raw[:len(domain.DateLayout)]
	}
	return time.Parse(domain.DateLayout, raw)
}

type SalesReader interface {
	ListDailySummaries(ctx context.Context, filter Filter) ([]domain.DailySummaryRecord, error)
	ListTransactions(ctx context.Context, filter Filter) ([]domain.TransactionRecord, error)
	ListStores(ctx context.Context) ([]string, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	SalesReader
	UserStore
}

// Loader writes a dataset into a SQL backend; used by the seed command.
type Loader interface {
	Migrate(ctx context.Context) error
	Load(ctx context.Context, summaries []domain.DailySummaryRecord, transactions []domain.TransactionRecord) error
}
