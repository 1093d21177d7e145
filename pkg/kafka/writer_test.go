package kafka

import (
	"context"
	"errors"
	"net"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
)

type fakeWriter struct {
	written []kafkago.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishMapsMessage(t *testing.T) {
	fake := &fakeWriter{}
	w := &Writer{writer: fake}

	err := w.Publish(context.Background(), outbox.Message{
		Topic:      "bookswap.purchases",
		Key:        "notif-1",
		Data:       []byte(`{"ok":true}`),
		Attributes: map[string]string{"event_type": "purchase_approved"},
	})
	require.NoError(t, err)
	require.Len(t, fake.written, 1)

	msg := fake.written[0]
	require.Equal(t, "bookswap.purchases", msg.Topic)
	require.Equal(t, []byte("notif-1"), msg.Key)
	require.JSONEq(t, `{"ok":true}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, []byte("purchase_approved"), msg.Headers[0].Value)

	require.NoError(t, w.Close())
	require.True(t, fake.closed)
}

func TestPublishRequiresTopicAndPropagatesErrors(t *testing.T) {
	fake := &fakeWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fake}

	require.Error(t, w.Publish(context.Background(), outbox.Message{Data: []byte("x")}))
	require.ErrorContains(t, w.Publish(context.Background(), outbox.Message{Topic: "t", Data: []byte("x")}), "leader not available")
}

func TestPingTriesEveryBroker(t *testing.T) {
	var dialed []string
	w := &Writer{
		brokers: []string{"a:9092", "b:9092"},
		dial: func(_ context.Context, _, address string) (net.Conn, error) {
			dialed = append(dialed, address)
			if address == "a:9092" {
				return nil, errors.New("refused")
			}
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		},
	}
	require.NoError(t, w.Ping(context.Background()))
	require.Equal(t, []string{"a:9092", "b:9092"}, dialed)

	w.brokers = []string{"a:9092"}
	require.ErrorContains(t, w.Ping(context.Background()), "refused")
}

func TestNewWriterRequiresBrokers(t *testing.T) {
	_, err := NewWriter(config.KafkaConfig{Brokers: []string{" ", ""}}, nil)
	require.Error(t, err)

	w, err := NewWriter(config.KafkaConfig{Brokers: []string{" localhost:9092 "}}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:9092"}, w.brokers)
	require.Equal(t, "kafka", w.Name())
	require.NoError(t, w.Close())
}
