package transaction

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finance-tracker/internal/domain"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTransactionStore struct{ mock.Mock }

func (m *mockTransactionStore) Put(ctx context.Context, t *domain.Transaction) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockTransactionStore) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if t, _ := args.Get(0).(*domain.Transaction); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTransactionStore) ListByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}
func (m *mockTransactionStore) ListRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID, from, to)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}
func (m *mockTransactionStore) Update(ctx context.Context, transactionID string, updates map[string]interface{}) error {
	return m.Called(ctx, transactionID, updates).Error(0)
}
func (m *mockTransactionStore) Delete(ctx context.Context, transactionID string) error {
	return m.Called(ctx, transactionID).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExportStore struct{ mock.Mock }

func (m *mockExportStore) Upload(ctx context.Context, key string, body []byte) error {
	return m.Called(ctx, key, body).Error(0)
}
func (m *mockExportStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

// --- builder ---

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newService(ts *mockTransactionStore, us *mockUserStore, es *mockExportStore) Service {
	logger, _ := logtest.NewNullLogger()
	return NewService(ServiceDeps{
		TransactionRepo: ts,
		UserRepo:        us,
		ExportStore:     es,
		ExportURLTTL:    24 * time.Hour,
		Logger:          logger,
		Now:             func() time.Time { return fixedNow },
	})
}

func tx(id, user, typ string, amount float64, date time.Time) domain.Transaction {
	return domain.Transaction{TransactionID: id, UserID: user, Title: id, Type: typ, Amount: amount, Category: "Food", Date: date}
}

// --- Create ---

func TestCreate_DefaultsCategoryAndDate(t *testing.T) {
	ts := &mockTransactionStore{}
	ts.On("Put", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)

	got, err := newService(ts, nil, nil).Create(context.Background(), "u1", domain.CreateTransactionRequest{
		Title: " Salary ", Amount: 5000, Type: domain.TransactionIncome,
	})

	require.NoError(t, err)
	assert.Equal(t, "Salary", got.Title)
	assert.Equal(t, domain.DefaultCategory, got.Category)
	assert.Equal(t, fixedNow, got.Date)
	assert.Equal(t, "u1", got.UserID)
	assert.NotEmpty(t, got.TransactionID)
}

func TestCreate_TruncatesDateToSeconds(t *testing.T) {
	ts := &mockTransactionStore{}
	ts.On("Put", mock.Anything, mock.Anything).Return(nil)
	d := time.Date(2025, 3, 1, 8, 30, 15, 999_000_000, time.FixedZone("IST", 5*3600+1800))

	got, err := newService(ts, nil, nil).Create(context.Background(), "u1", domain.CreateTransactionRequest{
		Title: "Rent", Amount: 900, Type: domain.TransactionExpense, Date: &d,
	})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 3, 0, 15, 0, time.UTC), got.Date)
}

func TestCreate_RejectsNonPositiveAmount(t *testing.T) {
	_, err := newService(nil, nil, nil).Create(context.Background(), "u1", domain.CreateTransactionRequest{
		Title: "x", Amount: 0, Type: domain.TransactionExpense,
	})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- ownership ---

func TestGet_OtherUsersTransaction(t *testing.T) {
	ts := &mockTransactionStore{}
	owned := tx("t1", "u2", domain.TransactionExpense, 10, fixedNow)
	ts.On("Get", mock.Anything, "t1").Return(&owned, nil)

	_, err := newService(ts, nil, nil).Get(context.Background(), "u1", "t1")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestGet_Missing(t *testing.T) {
	ts := &mockTransactionStore{}
	ts.On("Get", mock.Anything, "t1").Return(nil, domain.ErrNotFound)

	_, err := newService(ts, nil, nil).Get(context.Background(), "u1", "t1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_NotOwner(t *testing.T) {
	ts := &mockTransactionStore{}
	owned := tx("t1", "u2", domain.TransactionExpense, 10, fixedNow)
	ts.On("Get", mock.Anything, "t1").Return(&owned, nil)

	err := newService(ts, nil, nil).Delete(context.Background(), "u1", "t1")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- Update ---

func TestUpdate_PartialFields(t *testing.T) {
	ts := &mockTransactionStore{}
	cur := tx("t1", "u1", domain.TransactionExpense, 10, fixedNow)
	updated := cur
	updated.Amount = 25
	updated.Category = domain.DefaultCategory
	ts.On("Get", mock.Anything, "t1").Return(&cur, nil).Once()
	ts.On("Update", mock.Anything, "t1", map[string]interface{}{
		fieldAmount:   25.0,
		fieldCategory: domain.DefaultCategory,
	}).Return(nil)
	ts.On("Get", mock.Anything, "t1").Return(&updated, nil).Once()

	amount := 25.0
	blank := ""
	got, err := newService(ts, nil, nil).Update(context.Background(), "u1", "t1", domain.UpdateTransactionRequest{
		Amount: &amount, Category: &blank,
	})

	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Amount)
	ts.AssertExpectations(t)
}

// --- ListMonth ---

func TestListMonth_Range(t *testing.T) {
	ts := &mockTransactionStore{}
	from := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.On("ListRange", mock.Anything, "u1", from, to).Return(nil, nil)

	got, err := newService(ts, nil, nil).ListMonth(context.Background(), "u1", 2024, 12)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListMonth_InvalidMonth(t *testing.T) {
	_, err := newService(nil, nil, nil).ListMonth(context.Background(), "u1", 2025, 13)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Summary ---

func TestSummary_TotalsAndBudget(t *testing.T) {
	ts := &mockTransactionStore{}
	us := &mockUserStore{}
	ts.On("ListByUser", mock.Anything, "u1").Return([]domain.Transaction{
		tx("t1", "u1", domain.TransactionIncome, 5000, fixedNow.AddDate(0, -1, 0)),
		tx("t2", "u1", domain.TransactionExpense, 1000, fixedNow.AddDate(0, -1, 0)),
		tx("t3", "u1", domain.TransactionExpense, 750, fixedNow),
	}, nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", MonthlyBudget: 1000}, nil)

	sum, err := newService(ts, us, nil).Summary(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 5000.0, sum.TotalIncome)
	assert.Equal(t, 1750.0, sum.TotalExpense)
	assert.Equal(t, 3250.0, sum.NetBalance)
	assert.Equal(t, 750.0, sum.MonthExpense)
	require.NotNil(t, sum.BudgetUsedPercent)
	assert.InDelta(t, 75.0, *sum.BudgetUsedPercent, 0.001)
}

func TestSummary_NoBudget(t *testing.T) {
	ts := &mockTransactionStore{}
	us := &mockUserStore{}
	ts.On("ListByUser", mock.Anything, "u1").Return([]domain.Transaction{}, nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	sum, err := newService(ts, us, nil).Summary(context.Background(), "u1")

	require.NoError(t, err)
	assert.Nil(t, sum.BudgetUsedPercent)
	assert.Zero(t, sum.NetBalance)
}

// --- Export ---

func TestExport_UploadsCSVAndPresigns(t *testing.T) {
	ts := &mockTransactionStore{}
	es := &mockExportStore{}
	ts.On("ListByUser", mock.Anything, "u1").Return([]domain.Transaction{
		tx("t1", "u1", domain.TransactionExpense, 12.5, fixedNow),
	}, nil)
	var uploaded []byte
	es.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "exports/u1/") && strings.HasSuffix(k, ".csv")
	}), mock.Anything).Run(func(args mock.Arguments) { uploaded = args.Get(2).([]byte) }).Return(nil)
	es.On("PresignedURL", mock.Anything, mock.Anything, 24*time.Hour).Return("https://s3/presigned", nil)

	exp, err := newService(ts, nil, es).Export(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", exp.URL)
	assert.Equal(t, 1, exp.Count)
	assert.Equal(t, fixedNow.Add(24*time.Hour), exp.ExpiresAt)

	rows, err := csv.NewReader(strings.NewReader(string(uploaded))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"t1", "2025-03-15T10:00:00Z", "t1", "expense", "Food", "12.50"}, rows[1])
}

func TestExport_UploadFailure(t *testing.T) {
	ts := &mockTransactionStore{}
	es := &mockExportStore{}
	ts.On("ListByUser", mock.Anything, "u1").Return([]domain.Transaction{}, nil)
	es.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("s3 down"))

	_, err := newService(ts, nil, es).Export(context.Background(), "u1")

	assert.ErrorContains(t, err, "s3 down")
	es.AssertNotCalled(t, "PresignedURL", mock.Anything, mock.Anything, mock.Anything)
}
