package transaction

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finance-tracker/internal/domain"
	"github.com/finance-tracker/internal/pkg/id"
	"github.com/sirupsen/logrus"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldTitle    = "title"
	fieldAmount   = "amount"
	fieldType     = "type"
	fieldCategory = "category"
	fieldDate     = "date"
)

type Service interface {
	List(ctx context.Context, userID string) ([]domain.Transaction, error)
	ListMonth(ctx context.Context, userID string, year, month int) ([]domain.Transaction, error)
	Get(ctx context.Context, userID, transactionID string) (*domain.Transaction, error)
	Create(ctx context.Context, userID string, req domain.CreateTransactionRequest) (*domain.Transaction, error)
	Update(ctx context.Context, userID, transactionID string, req domain.UpdateTransactionRequest) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, transactionID string) error
	Summary(ctx context.Context, userID string) (*domain.Summary, error)
	Export(ctx context.Context, userID string) (*domain.Export, error)
}

type transactionStore interface {
	Put(ctx context.Context, t *domain.Transaction) error
	Get(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
	Update(ctx context.Context, transactionID string, updates map[string]interface{}) error
	Delete(ctx context.Context, transactionID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type exportStore interface {
	Upload(ctx context.Context, key string, body []byte) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type service struct {
	repo      transactionStore
	users     userStore
	exports   exportStore
	exportTTL time.Duration
	now       func() time.Time
	log       *logrus.Logger
}

type ServiceDeps struct {
	TransactionRepo transactionStore
	UserRepo        userStore
	ExportStore     exportStore
	ExportURLTTL    time.Duration
	Logger          *logrus.Logger
	Now             func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:      deps.TransactionRepo,
		users:     deps.UserRepo,
		exports:   deps.ExportStore,
		exportTTL: deps.ExportURLTTL,
		now:       deps.Now,
		log:       deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.exportTTL == 0 {
		s.exportTTL = 24 * time.Hour
	}
	return s
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(txs), nil
}

func (s *service) ListMonth(ctx context.Context, userID string, year, month int) ([]domain.Transaction, error) {
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return nil, fmt.Errorf("invalid year or month: %w", domain.ErrBadRequest)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	txs, err := s.repo.ListRange(ctx, userID, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	return nonNil(txs), nil
}

// Get returns the transaction if it belongs to userID.
func (s *service) Get(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	t, err := s.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("not authorized: %w", domain.ErrUnauthorized)
	}
	return t, nil
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0: %w", domain.ErrBadRequest)
	}
	if req.Type != domain.TransactionIncome && req.Type != domain.TransactionExpense {
		return nil, fmt.Errorf("type must be income or expense: %w", domain.ErrBadRequest)
	}
	now := s.now().UTC()
	date := now
	if req.Date != nil {
		date = *req.Date
	}
	t := &domain.Transaction{
		TransactionID: id.NewAt(now),
		UserID:        userID,
		Title:         title,
		Amount:        req.Amount,
		Type:          req.Type,
		Category:      categoryOrDefault(req.Category),
		Date:          normalizeDate(date),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) Update(ctx context.Context, userID, transactionID string, req domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	if _, err := s.Get(ctx, userID, transactionID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("title cannot be empty: %w", domain.ErrBadRequest)
		}
		updates[fieldTitle] = title
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, fmt.Errorf("amount must be greater than 0: %w", domain.ErrBadRequest)
		}
		updates[fieldAmount] = *req.Amount
	}
	if req.Type != nil {
		if *req.Type != domain.TransactionIncome && *req.Type != domain.TransactionExpense {
			return nil, fmt.Errorf("type must be income or expense: %w", domain.ErrBadRequest)
		}
		updates[fieldType] = *req.Type
	}
	if req.Category != nil {
		updates[fieldCategory] = categoryOrDefault(*req.Category)
	}
	if req.Date != nil {
		updates[fieldDate] = normalizeDate(*req.Date)
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, transactionID, updates); err != nil {
			return nil, err
		}
	}
	return s.repo.Get(ctx, transactionID)
}

func (s *service) Delete(ctx context.Context, userID, transactionID string) error {
	if _, err := s.Get(ctx, userID, transactionID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, transactionID)
}

func (s *service) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	txs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	sum := &domain.Summary{}
	for _, t := range txs {
		switch t.Type {
		case domain.TransactionIncome:
			sum.TotalIncome += t.Amount
		default:
			sum.TotalExpense += t.Amount
			if !t.Date.Before(monthStart) && t.Date.Before(monthEnd) {
				sum.MonthExpense += t.Amount
			}
		}
	}
	sum.NetBalance = sum.TotalIncome - sum.TotalExpense
	if u.MonthlyBudget > 0 {
		sum.MonthlyBudget = u.MonthlyBudget
		pct := sum.MonthExpense / u.MonthlyBudget * 100
		sum.BudgetUsedPercent = &pct
	}
	return sum, nil
}

// Export writes the user's transactions as CSV to object storage and returns
// a time-limited download link.
func (s *service) Export(ctx context.Context, userID string) (*domain.Export, error) {
	txs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	body, err := encodeCSV(txs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	key := fmt.Sprintf("exports/%s/transactions-%s.csv", userID, id.NewAt(now))
	if err := s.exports.Upload(ctx, key, body); err != nil {
		return nil, err
	}
	url, err := s.exports.PresignedURL(ctx, key, s.exportTTL)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "key": key, "count": len(txs)}).Info("transactions exported")
	return &domain.Export{Key: key, URL: url, Count: len(txs), ExpiresAt: now.Add(s.exportTTL)}, nil
}

var csvHeader = []string{"id", "date", "title", "type", "category", "amount"}

func encodeCSV(txs []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, t := range txs {
		row := []string{
			t.TransactionID,
			t.Date.UTC().Format(time.RFC3339),
			t.Title,
			t.Type,
			t.Category,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func categoryOrDefault(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return domain.DefaultCategory
	}
	return c
}

// normalizeDate keeps stored dates at second precision in UTC so their
// string form sorts chronologically in the date index.
func normalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nonNil(txs []domain.Transaction) []domain.Transaction {
	if txs == nil {
		return []domain.Transaction{}
	}
	return txs
}
