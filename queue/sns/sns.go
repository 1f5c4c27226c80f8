// Package sns provides an AWS SNS-backed queue for the event bus.
// Jobs are published to an SNS topic with the job type as a message
// attribute; an SQS subscription typically delivers them back.
package sns

import (
	"context"
	"fmt"
	"strconv"

	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

var _ adapters.Queue = (*Queue)(nil)

// Message attribute keys carried on published jobs.
const (
	AttrJobType      = "strand-job-type"
	AttrAttempts     = "strand-attempts"
	AttrBackoffType  = "strand-backoff-type"
	AttrBackoffDelay = "strand-backoff-delay-ms"
)

// SNSClient defines the subset of the SNS API used by the queue.
type SNSClient interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// Queue publishes queue jobs to an SNS topic. The retry policy is
// carried as message attributes; redelivery itself is the subscribing
// queue's job (SQS redrive policies map naturally onto it).
type Queue struct {
	client         SNSClient
	topicARN       string
	messageGroupID string
}

// Option configures a Queue.
type Option func(*Queue)

// WithClient sets the SNS client.
func WithClient(client SNSClient) Option {
	return func(q *Queue) {
		q.client = client
	}
}

// WithTopicARN sets the topic published to.
func WithTopicARN(arn string) Option {
	return func(q *Queue) {
		q.topicARN = arn
	}
}

// WithMessageGroupID sets the message group ID for FIFO topics.
func WithMessageGroupID(groupID string) Option {
	return func(q *Queue) {
		q.messageGroupID = groupID
	}
}

// New creates a new SNS Queue.
func New(opts ...Option) *Queue {
	q := &Queue{}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue publishes the payload to the configured topic.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload []byte, opts adapters.EnqueueOptions) error {
	if q.client == nil {
		return fmt.Errorf("strand/sns: client not configured")
	}
	if q.topicARN == "" {
		return fmt.Errorf("strand/sns: topic ARN not configured")
	}
	if jobType == "" {
		return fmt.Errorf("strand/sns: job type is required")
	}

	input := &awssns.PublishInput{
		TopicArn: &q.topicARN,
		Message:  stringPtr(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrJobType: {
				DataType:    stringPtr("String"),
				StringValue: stringPtr(jobType),
			},
			AttrAttempts: {
				DataType:    stringPtr("Number"),
				StringValue: stringPtr(strconv.Itoa(opts.Attempts)),
			},
			AttrBackoffType: {
				DataType:    stringPtr("String"),
				StringValue: stringPtr(opts.Backoff.Type),
			},
			AttrBackoffDelay: {
				DataType:    stringPtr("Number"),
				StringValue: stringPtr(strconv.FormatInt(opts.Backoff.Delay.Milliseconds(), 10)),
			},
		},
	}

	if q.messageGroupID != "" {
		input.MessageGroupId = &q.messageGroupID
	}

	if _, err := q.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("strand/sns: failed to publish to %s: %w", q.topicARN, err)
	}

	return nil
}

// Close is a no-op; the SNS client owns no connections to release.
func (q *Queue) Close() error {
	return nil
}

func stringPtr(s string) *string {
	return &s
}
