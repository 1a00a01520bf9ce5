package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/finance-tracker/internal/domain"
	"github.com/sirupsen/logrus"
)

// BatchWriteItem accepts at most 25 requests per call.
const batchWriteLimit = 25

// TransactionRepo provides typed DynamoDB operations for the transactions table.
// PK: transaction_id, GSI user_id-date-index (user_id, date).
type TransactionRepo struct {
	client    *dynamodb.Client
	tableName string
	log       *logrus.Logger
}

func NewTransactionRepo(client *dynamodb.Client, tableName string, log *logrus.Logger) *TransactionRepo {
	return &TransactionRepo{client: client, tableName: tableName, log: log}
}

func (r *TransactionRepo) Put(ctx context.Context, t *domain.Transaction) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldTransactionID, transactionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("transaction not found: %w", domain.ErrNotFound)
	}
	var t domain.Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByUser returns every transaction of the user, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return r.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexTransactionsByUserDate),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
}

// ListRange returns the user's transactions dated in [from, to), newest first.
func (r *TransactionRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	lo, err := attributevalue.Marshal(from.UTC())
	if err != nil {
		return nil, err
	}
	hi, err := attributevalue.Marshal(to.UTC())
	if err != nil {
		return nil, err
	}
	items, err := r.query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexTransactionsByUserDate),
		KeyConditionExpression:   aws.String("user_id = :uid AND #d BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{"#d": fieldDate},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":  &types.AttributeValueMemberS{Value: userID},
			":from": lo,
			":to":   hi,
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	// BETWEEN is inclusive on both ends.
	out := items[:0]
	for _, t := range items {
		if t.Date.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TransactionRepo) Update(ctx context.Context, transactionID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldTransactionID, transactionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(transaction_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("transaction not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *TransactionRepo) Delete(ctx context.Context, transactionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldTransactionID, transactionID),
	})
	return err
}

// DeleteByUser removes all of the user's transactions in batches and returns
// how many were deleted.
func (r *TransactionRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	txs, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(txs); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(txs))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, t := range txs[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(fieldTransactionID, t.TransactionID)},
			})
		}
		if err := r.batchWrite(ctx, reqs); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"deleted": deleted,
			}).Warn("failed to delete transactions during account deletion")
			return deleted, err
		}
		deleted += len(reqs)
	}
	return deleted, nil
}

// batchWrite retries unprocessed items a bounded number of times.
func (r *TransactionRepo) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; attempt < 5 && len(pending[r.tableName]) > 0; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
		if len(pending[r.tableName]) > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
			}
		}
	}
	if n := len(pending[r.tableName]); n > 0 {
		return fmt.Errorf("%d transactions left unprocessed", n)
	}
	return nil
}

func (r *TransactionRepo) query(ctx context.Context, input *dynamodb.QueryInput) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Transaction
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		txs = append(txs, batch...)
	}
	return txs, nil
}
