package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finance-tracker/internal/domain"
	jwtinfra "github.com/finance-tracker/internal/infrastructure/jwt"
	"github.com/finance-tracker/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) SendRegistrationCode(ctx context.Context, email string) (*domain.IssuedCode, error) {
	args := m.Called(ctx, email)
	if ic, _ := args.Get(0).(*domain.IssuedCode); ic != nil {
		return ic, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyRegistrationCode(ctx context.Context, email, code string) (string, error) {
	args := m.Called(ctx, email, code)
	return args.String(0), args.Error(1)
}

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*domain.AuthResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*domain.AuthResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Google(ctx context.Context, credential string) (*domain.AuthResult, error) {
	args := m.Called(ctx, credential)
	if res, _ := args.Get(0).(*domain.AuthResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) UpdateBudget(ctx context.Context, userID string, budget float64) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID, budget)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

func (m *mockUserSvc) RequestEmailChange(ctx context.Context, userID, newEmail string) (*domain.IssuedCode, error) {
	args := m.Called(ctx, userID, newEmail)
	if ic, _ := args.Get(0).(*domain.IssuedCode); ic != nil {
		return ic, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) VerifyEmailChange(ctx context.Context, userID, newEmail, code string) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID, newEmail, code)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) RequestAccountDeletion(ctx context.Context, userID, password string) (*domain.IssuedCode, error) {
	args := m.Called(ctx, userID, password)
	if ic, _ := args.Get(0).(*domain.IssuedCode); ic != nil {
		return ic, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) VerifyAccountDeletion(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

type mockTransactionSvc struct{ mock.Mock }

func (m *mockTransactionSvc) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}

func (m *mockTransactionSvc) ListMonth(ctx context.Context, userID string, year, month int) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID, year, month)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}

func (m *mockTransactionSvc) Get(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, transactionID)
	if t, _ := args.Get(0).(*domain.Transaction); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionSvc) Create(ctx context.Context, userID string, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, req)
	if t, _ := args.Get(0).(*domain.Transaction); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionSvc) Update(ctx context.Context, userID, transactionID string, req domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, transactionID, req)
	if t, _ := args.Get(0).(*domain.Transaction); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionSvc) Delete(ctx context.Context, userID, transactionID string) error {
	return m.Called(ctx, userID, transactionID).Error(0)
}

func (m *mockTransactionSvc) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*domain.Summary); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionSvc) Export(ctx context.Context, userID string) (*domain.Export, error) {
	args := m.Called(ctx, userID)
	if e, _ := args.Get(0).(*domain.Export); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func nullLogger() *logrus.Logger {
	l, _ := logtest.NewNullLogger()
	return l
}

func jsonReq(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// asUser attaches claims the way the auth middleware does.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID}))
}

func serve(t *testing.T, h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}
