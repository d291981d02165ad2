package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSendEncodesMessage(t *testing.T) {
	fake := &fakeSender{}
	client := &SQSClient{client: fake, queueURL: "https://sqs.example/queue"}

	err := client.Send(context.Background(), Message{DocumentID: "doc-1", StorageKey: "k.pdf", Version: MessageVersion})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.example/queue", aws.ToString(in.QueueUrl))
	got, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "doc-1", aws.ToString(in.MessageAttributes["documentId"].StringValue))
}

func TestSQSClientSendRejectsInvalidMessage(t *testing.T) {
	fake := &fakeSender{}
	client := &SQSClient{client: fake, queueURL: "q"}

	err := client.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrMissingDocumentID)
	assert.Empty(t, fake.inputs)
}

func TestSQSClientSendWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	client := &SQSClient{client: &fakeSender{err: boom}, queueURL: "q"}

	err := client.Send(context.Background(), Message{DocumentID: "doc-1"})
	assert.ErrorIs(t, err, boom)
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	_, err := NewSQSClient(context.Background(), " ", "us-east-1")
	assert.Error(t, err)
}
