package pubsub

import (
	"context"
	"fmt"

	"meter/internal/errors"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
)

// googleTransport publishes to a Cloud Pub/Sub topic.
type googleTransport struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// newGoogleTransport connects and fails fast when the topic does not exist.
func newGoogleTransport(ctx context.Context, projectID, topicID string) (*googleTransport, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topic := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic}); err != nil {
		_ = client.Close()

		return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
	}

	return &googleTransport{client: client, publisher: client.Publisher(topicID)}, nil
}

func (t *googleTransport) send(ctx context.Context, msg *outboundMessage) (string, error) {
	result := t.publisher.Publish(ctx, &pubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return serverID, nil
}

func (t *googleTransport) close() error {
	t.publisher.Stop()

	return errors.WithStack(t.client.Close())
}

func (t *googleTransport) name() string { return "google" }
