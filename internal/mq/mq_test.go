package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmtrace/internal/config"
)

type recordingBackend struct {
	channel string
	data    [][]byte
	attrs   []map[string]string
	err     error
	closed  bool
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = append(b.data, data)
	b.attrs = append(b.attrs, attrs)
	return "id", nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	backend := &recordingBackend{}
	p := NewPublisher(backend, "farmtrace.events", nil)

	p.Publish(context.Background(), EventBatchCreated, map[string]string{"batch_id": "b1"})

	require.Len(t, backend.data, 1)
	assert.Equal(t, "farmtrace.events", backend.channel)
	assert.Equal(t, EventBatchCreated, backend.attrs[0]["type"])

	var evt struct {
		ID      string            `json:"id"`
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(backend.data[0], &evt))
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, EventBatchCreated, evt.Type)
	assert.Equal(t, "b1", evt.Payload["batch_id"])

	require.NoError(t, p.Close())
	assert.True(t, backend.closed)
}

func TestPublisher_SwallowsErrors(t *testing.T) {
	backend := &recordingBackend{err: errors.New("broker down")}
	p := NewPublisher(backend, "farmtrace.events", nil)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), EventBatchHandoff, nil)
	})
}

func TestPublisher_WithoutBackend(t *testing.T) {
	p := NewPublisher(nil, "farmtrace.events", nil)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), EventUserRegistered, nil)
	})
	assert.NoError(t, p.Close())

	var nilPublisher *Publisher
	assert.NotPanics(t, func() {
		nilPublisher.Publish(context.Background(), EventUserRegistered, nil)
	})
}

func TestNewRabbitMQClient_RequiresURL(t *testing.T) {
	_, err := NewRabbitMQClient(config.RabbitMQ{})
	assert.Error(t, err)
}
