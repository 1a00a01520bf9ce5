package domain

import "time"

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"

	DefaultCategory = "Other"
)

type Transaction struct {
	TransactionID string    `json:"_id" dynamodbav:"transaction_id"`
	UserID        string    `json:"user" dynamodbav:"user_id"`
	Title         string    `json:"title" dynamodbav:"title"`
	Amount        float64   `json:"amount" dynamodbav:"amount"`
	Type          string    `json:"type" dynamodbav:"type"` // "income" | "expense"
	Category      string    `json:"category" dynamodbav:"category"`
	Date          time.Time `json:"date" dynamodbav:"date"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

type CreateTransactionRequest struct {
	Title    string     `json:"title" validate:"required,max=100"`
	Amount   float64    `json:"amount" validate:"required,gt=0"`
	Type     string     `json:"type" validate:"required,oneof=income expense"`
	Category string     `json:"category" validate:"omitempty,max=50"`
	Date     *time.Time `json:"date"`
}

type UpdateTransactionRequest struct {
	Title    *string    `json:"title" validate:"omitempty,min=1,max=100"`
	Amount   *float64   `json:"amount" validate:"omitempty,gt=0"`
	Type     *string    `json:"type" validate:"omitempty,oneof=income expense"`
	Category *string    `json:"category" validate:"omitempty,max=50"`
	Date     *time.Time `json:"date"`
}

// Summary aggregates all of a user's transactions. Budget figures refer to
// expenses of the current calendar month and are set only when a budget exists.
type Summary struct {
	TotalIncome       float64  `json:"totalIncome"`
	TotalExpense      float64  `json:"totalExpense"`
	NetBalance        float64  `json:"netBalance"`
	MonthExpense      float64  `json:"monthExpense"`
	MonthlyBudget     float64  `json:"monthlyBudget,omitempty"`
	BudgetUsedPercent *float64 `json:"budgetUsedPercent,omitempty"`
}

// Export describes a CSV export written to object storage.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}
