package redis

import (
	"testing"
	"time"

	"github.com/finance-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "otp:a@b.com", key("a@b.com"))
}

func TestVersion_IsUnixMillis(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 123_000_000, time.UTC)
	assert.Equal(t, "1740787200123", version(ts))
}

func TestParseOTP(t *testing.T) {
	rec, err := parseOTP("a@b.com", map[string]string{
		"code":       "482913",
		"purpose":    "account_deletion",
		"user_id":    "01HUSER",
		"verified":   "0",
		"attempts":   "2",
		"created_at": "1740787200123",
		"expires_at": "1740787800123",
	})

	require.NoError(t, err)
	assert.Equal(t, "482913", rec.Code)
	assert.Equal(t, domain.PurposeAccountDeletion, rec.Purpose)
	assert.Equal(t, "01HUSER", rec.UserID)
	assert.False(t, rec.Verified)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 10*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
	assert.Equal(t, "1740787200123", version(rec.CreatedAt))
}

func TestParseOTP_Verified(t *testing.T) {
	rec, err := parseOTP("a@b.com", map[string]string{
		"verified": "1", "attempts": "0", "created_at": "1", "expires_at": "2",
	})
	require.NoError(t, err)
	assert.True(t, rec.Verified)
}

func TestParseOTP_Corrupt(t *testing.T) {
	_, err := parseOTP("a@b.com", map[string]string{"attempts": "x"})
	assert.ErrorContains(t, err, "parse otp attempts")
}
