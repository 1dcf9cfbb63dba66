// Package sqsqueue adapts store.Queue onto Amazon SQS, giving the
// async order worker (spec.md §4.5) the at-least-once, visibility-
// timeout delivery semantics it depends on. It is the natural sibling
// of the DynamoDB adapter: same aws-sdk-go-v2 family, same client-
// wrapper shape as the teacher's repository.
package sqsqueue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/traffictacos/ticketing-core/internal/store"
)

// Adapter implements store.Queue against a live SQS client. queue
// names passed to Send/Receive/Delete are resolved to full queue URLs
// via a cache populated from GetQueueUrl, so callers can keep using
// short logical names the way the in-memory fake does.
type Adapter struct {
	client *sqs.Client
	urls   map[string]string
}

// New wraps an already-configured SQS client.
func New(client *sqs.Client) *Adapter {
	return &Adapter{client: client, urls: map[string]string{}}
}

func (a *Adapter) urlFor(ctx context.Context, queue string) (string, error) {
	if u, ok := a.urls[queue]; ok {
		return u, nil
	}
	out, err := a.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queue)})
	if err != nil {
		return "", fmt.Errorf("sqsqueue: resolve queue url %s: %w", queue, err)
	}
	a.urls[queue] = aws.ToString(out.QueueUrl)
	return a.urls[queue], nil
}

func (a *Adapter) Send(ctx context.Context, queue string, body []byte, attrs map[string]string) error {
	url, err := a.urlFor(ctx, queue)
	if err != nil {
		return err
	}
	msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		msgAttrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	_, err = a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(url),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return fmt.Errorf("sqsqueue: send %s: %w", queue, err)
	}
	return nil
}

// Receive long-polls for up to max messages, each with the given
// visibility timeout in seconds. A timeout of 0 lets the queue's
// default take effect.
func (a *Adapter) Receive(ctx context.Context, queue string, max int, visibilityTimeoutSeconds int) ([]store.Message, error) {
	url, err := a.urlFor(ctx, queue)
	if err != nil {
		return nil, err
	}
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       10,
		MessageAttributeNames: []string{"All"},
	}
	if visibilityTimeoutSeconds > 0 {
		input.VisibilityTimeout = int32(visibilityTimeoutSeconds)
	}
	res, err := a.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sqsqueue: receive %s: %w", queue, err)
	}
	out := make([]store.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		attrs := make(map[string]string, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			attrs[k] = aws.ToString(v.StringValue)
		}
		out = append(out, store.Message{
			Body:          []byte(aws.ToString(m.Body)),
			Attributes:    attrs,
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return out, nil
}

func (a *Adapter) Delete(ctx context.Context, queue string, receipt string) error {
	url, err := a.urlFor(ctx, queue)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("sqsqueue: delete %s: %w", queue, err)
	}
	return nil
}
