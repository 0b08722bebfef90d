// Package queue publishes recommendation run events to SQS for downstream
// consumers such as reporting and audit.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"agroia/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RunEventPublisher sends RunCompleted events to one queue.
type RunEventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewRunEventPublisher creates a publisher for queueURL.
func NewRunEventPublisher(client SQSSender, queueURL string, logger *slog.Logger) *RunEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunEventPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish serializes ev and sends it. The municipality and viable count are
// also set as message attributes so subscribers can filter without parsing
// the body.
func (p *RunEventPublisher) Publish(ctx context.Context, ev types.RunCompleted) error {
	if ev.EventType == "" {
		ev.EventType = types.EventRecommendationCompleted
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal run event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.EventType),
			},
			"municipality": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Municipality),
			},
			"viable": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(ev.Viable)),
			},
		},
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("queue: failed to send run event to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "run event sent",
		"queue_url", p.queueURL,
		"run_id", ev.RunID,
		"message_id", aws.ToString(out.MessageId),
		"champion", ev.Champion,
	)
	return nil
}

// Nop discards events.
type Nop struct{}

// Publish implements the publisher contract.
func (Nop) Publish(context.Context, types.RunCompleted) error { return nil }
