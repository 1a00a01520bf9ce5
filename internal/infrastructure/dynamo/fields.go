package dynamo

// DynamoDB attribute names used in key and update expressions across all repos.
const (
	fieldUserID        = "user_id"
	fieldTransactionID = "transaction_id"
	fieldEmail         = "email"
	fieldGoogleSub     = "google_sub"
	fieldDate          = "date"
	fieldUpdatedAt     = "updated_at"

	fieldAttempts  = "attempts"
	fieldVerified  = "verified"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// Index names created by Bootstrap.
const (
	indexUsersByEmail           = "email-index"
	indexUsersByGoogleSub       = "google_sub-index"
	indexTransactionsByUserDate = "user_id-date-index"
)
