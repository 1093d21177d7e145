package pubsub

import (
	"context"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
)

type stubResult struct {
	id  string
	err error
}

func (s stubResult) Get(context.Context) (string, error) { return s.id, s.err }

type stubPublisher struct {
	sent    []*pubsub.Message
	err     error
	stopped bool
}

func (s *stubPublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	s.sent = append(s.sent, msg)
	return stubResult{id: "server-id", err: s.err}
}

func (s *stubPublisher) Stop() { s.stopped = true }

func newTestClient(pub *stubPublisher, check topicChecker) (*Client, *[]string) {
	created := []string{}
	c := &Client{
		projectID:  "proj",
		cfg:        config.PubSubConfig{PurchaseTopic: "purchases", ListingTopic: "projects/other/topics/listings"},
		publishers: map[string]topicPublisher{},
		newPub: func(fullName string) topicPublisher {
			created = append(created, fullName)
			return pub
		},
		checkTopic: check,
	}
	return c, &created
}

func TestPublishReusesTopicPublisher(t *testing.T) {
	pub := &stubPublisher{}
	c, created := newTestClient(pub, nil)

	for i := 0; i < 2; i++ {
		err := c.Publish(context.Background(), outbox.Message{
			Topic:      "purchases",
			Key:        "notif-1",
			Data:       []byte(`{}`),
			Attributes: map[string]string{"event_type": "purchase_submitted"},
		})
		require.NoError(t, err)
	}

	require.Equal(t, []string{"projects/proj/topics/purchases"}, *created)
	require.Len(t, pub.sent, 2)
	require.Equal(t, "notif-1", pub.sent[0].OrderingKey)
	require.Equal(t, "purchase_submitted", pub.sent[0].Attributes["event_type"])

	require.NoError(t, c.Close())
	require.True(t, pub.stopped)
}

func TestPublishSurfacesAckFailure(t *testing.T) {
	pub := &stubPublisher{err: errors.New("deadline exceeded")}
	c, _ := newTestClient(pub, nil)

	err := c.Publish(context.Background(), outbox.Message{Topic: "purchases", Data: []byte(`{}`)})
	require.ErrorContains(t, err, "deadline exceeded")

	err = c.Publish(context.Background(), outbox.Message{Topic: " ", Data: []byte(`{}`)})
	require.ErrorIs(t, err, errNoTopics)
}

func TestPingChecksEveryTopic(t *testing.T) {
	var checked []string
	c, _ := newTestClient(&stubPublisher{}, func(_ context.Context, fullName string) error {
		checked = append(checked, fullName)
		return nil
	})
	require.NoError(t, c.Ping(context.Background()))
	require.Equal(t, []string{"projects/proj/topics/purchases", "projects/other/topics/listings"}, checked)
}

func TestPingReportsMissingTopic(t *testing.T) {
	c, _ := newTestClient(&stubPublisher{}, func(context.Context, string) error {
		return status.Error(codes.NotFound, "missing")
	})
	require.ErrorContains(t, c.Ping(context.Background()), `topic "purchases" does not exist`)

	c.cfg = config.PubSubConfig{}
	require.ErrorIs(t, c.Ping(context.Background()), errNoTopics)
}
