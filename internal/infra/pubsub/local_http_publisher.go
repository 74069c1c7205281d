package pubsub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"meter/internal/errors"
)

const localSubscription = "projects/local/subscriptions/meter-worker"

// PushEnvelope is the body Pub/Sub sends to push subscribers. The local
// transport produces it so the worker sees the same shape in development.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// localHTTPTransport POSTs push envelopes straight to the worker.
type localHTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

func newLocalHTTPTransport(endpoint string, httpClient *http.Client) *localHTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &localHTTPTransport{endpoint: endpoint, httpClient: httpClient, now: time.Now}
}

func (t *localHTTPTransport) send(ctx context.Context, msg *outboundMessage) (string, error) {
	envelope := PushEnvelope{Subscription: localSubscription}
	envelope.Message.Data = base64.StdEncoding.EncodeToString(msg.Data)
	envelope.Message.Attributes = msg.Attributes
	envelope.Message.MessageID = msg.ID
	envelope.Message.PublishTime = t.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(envelope)
	if err != nil {
		return "", errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := msg.Attributes[AttrRequestID]; requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", errors.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	return msg.ID, nil
}

func (t *localHTTPTransport) close() error { return nil }

func (t *localHTTPTransport) name() string { return "local" }
