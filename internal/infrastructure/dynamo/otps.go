package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/finance-tracker/internal/domain"
)

// OTPRepo stores OTP challenges. PK: email, so an address has at most one
// live challenge. created_at (unix millis) is the record version used by every
// conditional write; expires_at (unix seconds) drives table TTL.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

type otpItem struct {
	Email     string `dynamodbav:"email"`
	Code      string `dynamodbav:"code"`
	Purpose   string `dynamodbav:"purpose"`
	UserID    string `dynamodbav:"user_id,omitempty"`
	Verified  bool   `dynamodbav:"verified"`
	Attempts  int    `dynamodbav:"attempts"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func toOTPItem(o *domain.OTP) otpItem {
	return otpItem{
		Email:     o.Email,
		Code:      o.Code,
		Purpose:   string(o.Purpose),
		UserID:    o.UserID,
		Verified:  o.Verified,
		Attempts:  o.Attempts,
		CreatedAt: o.CreatedAt.UnixMilli(),
		ExpiresAt: o.ExpiresAt.Unix(),
	}
}

func (i otpItem) toDomain() *domain.OTP {
	return &domain.OTP{
		Email:     i.Email,
		Code:      i.Code,
		Purpose:   domain.Purpose(i.Purpose),
		UserID:    i.UserID,
		Verified:  i.Verified,
		Attempts:  i.Attempts,
		CreatedAt: time.UnixMilli(i.CreatedAt).UTC(),
		ExpiresAt: time.Unix(i.ExpiresAt, 0).UTC(),
	}
}

// Create replaces the challenge for rec.Email unless the current one is
// unverified and younger than cooldown.
func (r *OTPRepo) Create(ctx context.Context, rec *domain.OTP, cooldown time.Duration) error {
	item, err := attributevalue.MarshalMap(toOTPItem(rec))
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	cutoff := rec.CreatedAt.Add(-cooldown).UnixMilli()
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email) OR created_at <= :cutoff OR verified = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": numValue(cutoff),
			":true":   &types.AttributeValueMemberBOOL{Value: true},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		retry := cooldown
		var cur otpItem
		if ccf.Item != nil && attributevalue.UnmarshalMap(ccf.Item, &cur) == nil {
			retry = time.UnixMilli(cur.CreatedAt).Add(cooldown).Sub(rec.CreatedAt)
		}
		return &domain.RateLimitError{RetryAfter: retry}
	}
	return err
}

func (r *OTPRepo) Get(ctx context.Context, email string) (*domain.OTP, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var item otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return item.toDomain(), nil
}

func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string, version time.Time, max int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldEmail, email),
		UpdateExpression:    aws.String("ADD #a :one"),
		ConditionExpression: aws.String("#c = :version AND #v = :false AND #a < :max"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
			"#c": fieldCreatedAt,
			"#v": fieldVerified,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":     numValue(1),
			":version": numValue(version.UnixMilli()),
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":max":     numValue(int64(max)),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("otp changed: %w", domain.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("update otp: missing %s in response", fieldAttempts)
	}
	return strconv.Atoi(n.Value)
}

func (r *OTPRepo) MarkVerified(ctx context.Context, email string, version time.Time, max int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldEmail, email),
		UpdateExpression:    aws.String("SET #v = :true"),
		ConditionExpression: aws.String("#c = :version AND #v = :false AND #a < :max"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
			"#c": fieldCreatedAt,
			"#v": fieldVerified,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": numValue(version.UnixMilli()),
			":true":    &types.AttributeValueMemberBOOL{Value: true},
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":max":     numValue(int64(max)),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp changed: %w", domain.ErrConflict)
	}
	return err
}

// Delete removes the challenge only if it has not been superseded.
func (r *OTPRepo) Delete(ctx context.Context, email string, version time.Time) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		ConditionExpression:       aws.String("#c = :version"),
		ExpressionAttributeNames:  map[string]string{"#c": fieldCreatedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":version": numValue(version.UnixMilli())},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}
