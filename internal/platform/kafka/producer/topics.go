package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// EnsureTopics creates any missing topics with the given partition count
// and the broker's default replication factor.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, topics ...string) error {
	admin := kadm.NewClient(p.client)

	resp, err := admin.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// BrokerCount returns the number of brokers in cluster metadata, used by the
// readiness probe.
func (p *Producer) BrokerCount(ctx context.Context) (int, error) {
	brokers, err := kadm.NewClient(p.client).ListBrokers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list brokers: %w", err)
	}
	return len(brokers), nil
}
