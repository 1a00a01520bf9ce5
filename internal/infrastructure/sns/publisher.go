package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/finance-tracker/internal/config"
	"github.com/finance-tracker/internal/domain"
	"github.com/sirupsen/logrus"
)

const eventType = "otp.delivery"

type client interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, in *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

// Event is the message published for each code. A subscriber owns the final
// delivery to the user.
type Event struct {
	Type             string         `json:"type"`
	Email            string         `json:"email"`
	Code             string         `json:"code"`
	Purpose          domain.Purpose `json:"purpose"`
	ExpiresInSeconds int            `json:"expiresInSeconds"`
	IssuedAt         time.Time      `json:"issuedAt"`
}

// Publisher delivers OTP codes by publishing them to an SNS topic.
type Publisher struct {
	client   client
	topicARN string
	expiry   time.Duration
	log      *logrus.Logger
}

func NewPublisher(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Publisher, error) {
	if cfg.SNSTopicARN == "" {
		return nil, fmt.Errorf("SNS_TOPIC_ARN is required for the sns channel")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	c := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &Publisher{client: c, topicARN: cfg.SNSTopicARN, expiry: cfg.OTP.Expiry, log: log}, nil
}

func (p *Publisher) Deliver(ctx context.Context, email, code string, purpose domain.Purpose) error {
	body, err := json.Marshal(Event{
		Type:             eventType,
		Email:            email,
		Code:             code,
		Purpose:          purpose,
		ExpiresInSeconds: int(p.expiry.Seconds()),
		IssuedAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal otp event: %w", err)
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type":    {DataType: aws.String("String"), StringValue: aws.String(eventType)},
			"purpose": {DataType: aws.String("String"), StringValue: aws.String(string(purpose))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish otp event to %s: %w", p.topicARN, err)
	}
	p.log.WithFields(logrus.Fields{
		"to":         email,
		"purpose":    purpose,
		"message_id": aws.ToString(out.MessageId),
	}).Debug("otp event published")
	return nil
}

// Ping checks the topic exists and is readable.
func (p *Publisher) Ping(ctx context.Context) error {
	_, err := p.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(p.topicARN)})
	return err
}
