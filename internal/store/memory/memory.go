package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/store"
)

// DemoSeed is the generator seed used by NewSeeded and the seed command.
const DemoSeed uint64 = 20240301

type Store struct {
	mu              sync.RWMutex
	summaries       []domain.DailySummaryRecord
	transactions    []domain.TransactionRecord
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_VIEWER_PASSWORD.
// If unset, dev defaults are used and a warning is logged. The backend only
// uses these accounts when no database is configured.
func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	viewerPwd := envOr("SEED_VIEWER_PASSWORD", "viewer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_VIEWER_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_VIEWER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"viewer", viewerPwd, "viewer"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("hash seed password", zap.String("username", u.username), zap.Error(err))
			continue
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

// SeedAccounts returns the seeded dashboard accounts, hashed, for writing
// into a SQL user store.
func SeedAccounts(logger *zap.Logger) []domain.UserAccount {
	if logger == nil {
		logger = zap.NewNop()
	}
	users := seedUsers(logger)
	out := make([]domain.UserAccount, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding a year of demo sales ending today plus
// the seeded accounts.
func NewSeeded(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	summaries, transactions := GenerateDemo(DemoOptions{Seed: DemoSeed, End: time.Now().UTC(), Days: 365})
	s := New(summaries, transactions)
	s.usersByUsername = seedUsers(logger)
	logger.Info("demo dataset generated",
		zap.Int("summaries", len(summaries)),
		zap.Int("details", len(transactions)),
	)
	return s
}

// New wraps the given rows. It starts with no user accounts.
func New(summaries []domain.DailySummaryRecord, transactions []domain.TransactionRecord) *Store {
	return &Store{
		summaries:       summaries,
		transactions:    transactions,
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListDailySummaries(_ context.Context, filter store.Filter) ([]domain.DailySummaryRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DailySummaryRecord, 0, 256)
	for _, r := range s.summaries {
		if filter.Matches(r.Date, r.StoreName) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, filter store.Filter) ([]domain.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TransactionRecord, 0, 512)
	for _, r := range s.transactions {
		if filter.Matches(r.Date, r.StoreName) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListStores(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, 16)
	stores := make([]string, 0, 16)
	for _, r := range s.summaries {
		if _, ok := seen[r.StoreName]; ok {
			continue
		}
		seen[r.StoreName] = struct{}{}
		stores = append(stores, r.StoreName)
	}
	slices.Sort(stores)
	return stores, nil
}

// Load appends rows, skipping summaries already present.
func (s *Store) Load(_ context.Context, summaries []domain.DailySummaryRecord, transactions []domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		store, receipt string
		day            time.Time
	}
	existing := make(map[key]struct{}, len(s.summaries))
	for _, r := range s.summaries {
		existing[key{r.StoreName, r.ReceiptNumber, r.Date}] = struct{}{}
	}
	for _, r := range summaries {
		k := key{r.StoreName, r.ReceiptNumber, r.Date}
		if _, ok := existing[k]; ok {
			continue
		}
		existing[k] = struct{}{}
		s.summaries = append(s.summaries, r)
	}
	s.transactions = append(s.transactions, transactions...)
	return nil
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidUser
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidUser
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "viewer"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidUser
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
