package user

import (
	"context"
	"errors"
	"testing"

	"github.com/finance-tracker/internal/application/otp"
	"github.com/finance-tracker/internal/domain"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) ExistsForOtherUser(ctx context.Context, email, excludeID string) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) UpdateEmail(ctx context.Context, userID, email string) error {
	return m.Called(ctx, userID, email).Error(0)
}
func (m *mockUserStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockTransactionStore struct{ mock.Mock }

func (m *mockTransactionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockOTPService struct{ mock.Mock }

func (m *mockOTPService) RequestCode(ctx context.Context, req otp.IssueRequest) (*domain.IssuedCode, error) {
	args := m.Called(ctx, req)
	if c, _ := args.Get(0).(*domain.IssuedCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// VerifyCode runs the completion with the configured record when no error is set.
func (m *mockOTPService) VerifyCode(ctx context.Context, req otp.VerifyRequest, complete otp.Completion) error {
	args := m.Called(ctx, req)
	if err := args.Error(1); err != nil {
		return err
	}
	if rec, _ := args.Get(0).(*domain.OTP); rec != nil && complete != nil {
		return complete(ctx, rec)
	}
	return nil
}

// --- builder ---

func newService(us *mockUserStore, ts *mockTransactionStore, otps *mockOTPService) Service {
	logger, _ := logtest.NewNullLogger()
	return NewService(ServiceDeps{
		UserRepo:        us,
		TransactionRepo: ts,
		OTPService:      otps,
		Logger:          logger,
	})
}

func localUser(t *testing.T) *domain.User {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{UserID: "u1", Name: "Alice", Email: "alice@test.com", PasswordHash: string(h)}
}

func strPtr(s string) *string { return &s }

// --- profile & budget ---

func TestUpdateProfile_TrimsName(t *testing.T) {
	us := &mockUserStore{}
	us.On("Update", mock.Anything, "u1", map[string]interface{}{fieldName: "Bob"}).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Name: "Bob"}, nil)

	pu, err := newService(us, nil, nil).UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{Name: strPtr("  Bob ")})

	require.NoError(t, err)
	assert.Equal(t, "Bob", pu.Name)
	us.AssertExpectations(t)
}

func TestUpdateProfile_BlankName(t *testing.T) {
	_, err := newService(&mockUserStore{}, nil, nil).UpdateProfile(context.Background(), "u1", domain.UpdateProfileRequest{Name: strPtr("   ")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdateBudget(t *testing.T) {
	us := &mockUserStore{}
	us.On("Update", mock.Anything, "u1", map[string]interface{}{fieldMonthlyBudget: 1500.0}).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", MonthlyBudget: 1500}, nil)

	pu, err := newService(us, nil, nil).UpdateBudget(context.Background(), "u1", 1500)

	require.NoError(t, err)
	assert.Equal(t, 1500.0, pu.MonthlyBudget)
}

func TestUpdateBudget_Negative(t *testing.T) {
	_, err := newService(&mockUserStore{}, nil, nil).UpdateBudget(context.Background(), "u1", -1)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- ChangePassword ---

func TestChangePassword_WrongCurrent(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)

	err := newService(us, nil, nil).ChangePassword(context.Background(), "u1", "wrong", "newsecret")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_HappyPath(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		h, _ := m[fieldPasswordHash].(string)
		return bcrypt.CompareHashAndPassword([]byte(h), []byte("newsecret")) == nil
	})).Return(nil)

	err := newService(us, nil, nil).ChangePassword(context.Background(), "u1", "secret1", "newsecret")

	require.NoError(t, err)
	us.AssertExpectations(t)
}

func TestChangePassword_GoogleAccount(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", AuthProvider: domain.AuthProviderGoogle}, nil)

	err := newService(us, nil, nil).ChangePassword(context.Background(), "u1", "x", "newsecret")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- email change ---

func TestRequestEmailChange_SameEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)

	_, err := newService(us, nil, nil).RequestEmailChange(context.Background(), "u1", "Alice@Test.com")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequestEmailChange_InUse(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	us.On("ExistsForOtherUser", mock.Anything, "taken@test.com", "u1").Return(true, nil)

	_, err := newService(us, nil, nil).RequestEmailChange(context.Background(), "u1", "taken@test.com")

	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRequestEmailChange_SendsCodeToNewAddress(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	us.On("ExistsForOtherUser", mock.Anything, "new@test.com", "u1").Return(false, nil)
	otps.On("RequestCode", mock.Anything, otp.IssueRequest{Email: "new@test.com", Purpose: domain.PurposeEmailChange, UserID: "u1"}).
		Return(&domain.IssuedCode{Email: "new@test.com"}, nil)

	issued, err := newService(us, nil, otps).RequestEmailChange(context.Background(), "u1", "New@Test.com")

	require.NoError(t, err)
	assert.Equal(t, "new@test.com", issued.Email)
	otps.AssertExpectations(t)
}

func TestVerifyEmailChange_UpdatesEmail(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	otps.On("VerifyCode", mock.Anything, otp.VerifyRequest{Email: "new@test.com", Code: "482913", Purpose: domain.PurposeEmailChange, UserID: "u1"}).
		Return(&domain.OTP{Email: "new@test.com", UserID: "u1", Verified: true}, nil)
	us.On("ExistsForOtherUser", mock.Anything, "new@test.com", "u1").Return(false, nil)
	us.On("UpdateEmail", mock.Anything, "u1", "new@test.com").Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "new@test.com"}, nil)

	pu, err := newService(us, nil, otps).VerifyEmailChange(context.Background(), "u1", "new@test.com", "482913")

	require.NoError(t, err)
	assert.Equal(t, "new@test.com", pu.Email)
	us.AssertExpectations(t)
}

func TestVerifyEmailChange_ClaimedMeanwhile(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	otps.On("VerifyCode", mock.Anything, mock.Anything).Return(&domain.OTP{Email: "new@test.com", Verified: true}, nil)
	us.On("ExistsForOtherUser", mock.Anything, "new@test.com", "u1").Return(true, nil)

	_, err := newService(us, nil, otps).VerifyEmailChange(context.Background(), "u1", "new@test.com", "482913")

	assert.True(t, errors.Is(err, domain.ErrConflict))
	us.AssertNotCalled(t, "UpdateEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmailChange_WrongCode(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	otps.On("VerifyCode", mock.Anything, mock.Anything).Return(nil, &domain.InvalidCodeError{AttemptsRemaining: 1})

	_, err := newService(us, nil, otps).VerifyEmailChange(context.Background(), "u1", "new@test.com", "000000")

	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

// --- account deletion ---

func TestRequestAccountDeletion_RequiresPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)

	_, err := newService(us, nil, nil).RequestAccountDeletion(context.Background(), "u1", "")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequestAccountDeletion_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)

	_, err := newService(us, nil, nil).RequestAccountDeletion(context.Background(), "u1", "nope")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRequestAccountDeletion_GoogleAccountNeedsNoPassword(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "g@test.com", AuthProvider: domain.AuthProviderGoogle}, nil)
	otps.On("RequestCode", mock.Anything, otp.IssueRequest{Email: "g@test.com", Purpose: domain.PurposeAccountDeletion, UserID: "u1"}).
		Return(&domain.IssuedCode{Email: "g@test.com"}, nil)

	_, err := newService(us, nil, otps).RequestAccountDeletion(context.Background(), "u1", "")

	require.NoError(t, err)
}

func TestVerifyAccountDeletion_Cascades(t *testing.T) {
	us := &mockUserStore{}
	ts := &mockTransactionStore{}
	otps := &mockOTPService{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	otps.On("VerifyCode", mock.Anything, otp.VerifyRequest{Email: "alice@test.com", Code: "482913", Purpose: domain.PurposeAccountDeletion, UserID: "u1"}).
		Return(&domain.OTP{Email: "alice@test.com", UserID: "u1", Verified: true}, nil)
	ts.On("DeleteByUser", mock.Anything, "u1").Return(3, nil)
	us.On("Delete", mock.Anything, "u1").Return(nil)

	err := newService(us, ts, otps).VerifyAccountDeletion(context.Background(), "u1", "482913")

	require.NoError(t, err)
	ts.AssertExpectations(t)
	us.AssertExpectations(t)
}

func TestVerifyAccountDeletion_TransactionFailureKeepsUser(t *testing.T) {
	us := &mockUserStore{}
	ts := &mockTransactionStore{}
	otps := &mockOTPService{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	otps.On("VerifyCode", mock.Anything, mock.Anything).Return(&domain.OTP{Email: "alice@test.com", Verified: true}, nil)
	ts.On("DeleteByUser", mock.Anything, "u1").Return(0, errors.New("dynamo error"))

	err := newService(us, ts, otps).VerifyAccountDeletion(context.Background(), "u1", "482913")

	require.Error(t, err)
	us.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestVerifyAccountDeletion_Exhausted(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPService{}
	us.On("Get", mock.Anything, "u1").Return(localUser(t), nil)
	otps.On("VerifyCode", mock.Anything, mock.Anything).Return(nil, domain.ErrAttemptsExceeded)

	err := newService(us, nil, otps).VerifyAccountDeletion(context.Background(), "u1", "482913")

	assert.ErrorIs(t, err, domain.ErrAttemptsExceeded)
}
