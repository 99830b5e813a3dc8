// Package event publishes document lifecycle events to NSQ so downstream
// consumers (audit, billing, cache warmers) can follow ingestions and
// evictions without being in the request path.
package event

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nsqio/go-nsq"

	"finqa/backend/internal/config"
)

type NSQPublisher struct {
	producer *nsq.Producer
}

func NewNSQPublisher(producer *nsq.Producer) *NSQPublisher {
	return &NSQPublisher{producer: producer}
}

func (p *NSQPublisher) Publish(topic string, body []byte) error {
	return p.producer.Publish(topic, body)
}

// CreateTopics pre-creates the lifecycle topics via the nsqd HTTP API. NSQ
// creates topics lazily on first publish, but consumers querying lookupd 404
// until then, so we create them eagerly and tolerate failures.
func CreateTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	create(config.TopicDocumentIngested)
	create(config.TopicDocumentExpired)
	create(config.TopicDocumentExpiryFailed)
}
