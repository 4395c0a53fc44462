package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type fakePublisher struct {
	msgs    []*pubsub.Message
	err     error
	resumed []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.msgs = append(f.msgs, msg)
	return fakeResult{id: "m-1", err: f.err}
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.id, nil
}

func TestOrderedPublisherSetsOrderingKey(t *testing.T) {
	fake := &fakePublisher{}
	pub := &OrderedPublisher{pub: fake, timeout: time.Second}

	id, err := pub.Publish(context.Background(), "77-ORD1", []byte(`{}`), map[string]string{"event": "order"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	require.Len(t, fake.msgs, 1)
	assert.Equal(t, "77-ORD1", fake.msgs[0].OrderingKey)
	assert.Equal(t, "order", fake.msgs[0].Attributes["event"])
	assert.Empty(t, fake.resumed)
}

func TestOrderedPublisherResumesKeyOnFailure(t *testing.T) {
	fake := &fakePublisher{err: errors.New("unavailable")}
	pub := &OrderedPublisher{pub: fake, timeout: time.Second}

	_, err := pub.Publish(context.Background(), "77-ORD1", []byte(`{}`), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"77-ORD1"}, fake.resumed)
}

func TestOrderedPublisherRequiresKey(t *testing.T) {
	pub := &OrderedPublisher{pub: &fakePublisher{}, timeout: time.Second}
	_, err := pub.Publish(context.Background(), "", nil, nil)
	require.Error(t, err)

	var nilPub *OrderedPublisher
	_, err = nilPub.Publish(context.Background(), "k", nil, nil)
	require.Error(t, err)
}

func TestOrderedPublisherAgainstFakeServer(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "dropshop-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic := resourceName("dropshop-test", "topics", "orders")
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
	require.NoError(t, err)

	raw := client.Publisher(topic)
	t.Cleanup(raw.Stop)
	pub, err := NewOrderedPublisher(raw)
	require.NoError(t, err)

	for _, body := range []string{"first", "second"} {
		_, err := pub.Publish(ctx, "77-ORD1", []byte(body), nil)
		require.NoError(t, err)
	}

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", string(msgs[0].Data))
	assert.Equal(t, "second", string(msgs[1].Data))
	assert.Equal(t, "77-ORD1", msgs[0].OrderingKey)
}
