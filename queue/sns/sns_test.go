package sns

import (
	"context"
	"errors"
	"testing"
	"time"

	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshkanYarmoradi/go-strand/adapters"
)

// captureClient records publish calls without touching AWS.
type captureClient struct {
	inputs  []*awssns.PublishInput
	failErr error
}

func (c *captureClient) Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	c.inputs = append(c.inputs, params)
	return &awssns.PublishOutput{}, nil
}

func TestQueue_Enqueue(t *testing.T) {
	client := &captureClient{}
	queue := New(
		WithClient(client),
		WithTopicARN("arn:aws:sns:us-east-1:123456789012:strand-events"),
	)

	err := queue.Enqueue(context.Background(), "domain-events", []byte(`{"id":"evt-1"}`), adapters.EnqueueOptions{
		Attempts: 3,
		Backoff:  adapters.BackoffPolicy{Type: "exponential", Delay: time.Second},
	})

	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:strand-events", *input.TopicArn)
	assert.Equal(t, `{"id":"evt-1"}`, *input.Message)
	assert.Nil(t, input.MessageGroupId)

	attrs := input.MessageAttributes
	assert.Equal(t, "domain-events", *attrs[AttrJobType].StringValue)
	assert.Equal(t, "3", *attrs[AttrAttempts].StringValue)
	assert.Equal(t, "exponential", *attrs[AttrBackoffType].StringValue)
	assert.Equal(t, "1000", *attrs[AttrBackoffDelay].StringValue)
}

func TestQueue_Enqueue_FIFOGroupID(t *testing.T) {
	client := &captureClient{}
	queue := New(
		WithClient(client),
		WithTopicARN("arn:aws:sns:us-east-1:123456789012:strand-events.fifo"),
		WithMessageGroupID("tenant-a"),
	)

	err := queue.Enqueue(context.Background(), "domain-events", []byte("x"), adapters.EnqueueOptions{})

	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	require.NotNil(t, client.inputs[0].MessageGroupId)
	assert.Equal(t, "tenant-a", *client.inputs[0].MessageGroupId)
}

func TestQueue_Enqueue_Validation(t *testing.T) {
	ctx := context.Background()
	opts := adapters.EnqueueOptions{}

	err := New(WithTopicARN("arn:x")).Enqueue(ctx, "jobs", []byte("x"), opts)
	assert.ErrorContains(t, err, "client not configured")

	err = New(WithClient(&captureClient{})).Enqueue(ctx, "jobs", []byte("x"), opts)
	assert.ErrorContains(t, err, "topic ARN not configured")

	err = New(WithClient(&captureClient{}), WithTopicARN("arn:x")).Enqueue(ctx, "", []byte("x"), opts)
	assert.ErrorContains(t, err, "job type is required")
}

func TestQueue_Enqueue_PublishFailure(t *testing.T) {
	client := &captureClient{failErr: errors.New("throttled")}
	queue := New(WithClient(client), WithTopicARN("arn:x"))

	err := queue.Enqueue(context.Background(), "jobs", []byte("x"), adapters.EnqueueOptions{})

	require.Error(t, err)
	assert.ErrorContains(t, err, "throttled")
}
