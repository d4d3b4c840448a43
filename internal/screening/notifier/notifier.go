// Package notifier delivers the pre-adverse-action notice a candidate must
// receive before an adverse decision is finalized.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basecamp/internal/platform/kafka/producer"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/privacy"
)

// DefaultTopic receives pre-adverse notices for the mailer to render.
const DefaultTopic = "screening.notices.pre_adverse"

// Contact is where the notice goes.
type Contact struct {
	Email string
	Phone string
}

// Identity names the candidate the notice is about.
type Identity struct {
	FullName string
	RecordID domain.ScreeningID
}

// Notice is the message body consumers render.
type Notice struct {
	Type        string    `json:"type"`
	RecordID    string    `json:"record_id"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	FullName    string    `json:"full_name"`
	ArtifactURL string    `json:"artifact_url"`
	SentAt      time.Time `json:"sent_at"`
}

const noticeType = "pre_adverse_action"

func newNotice(c Contact, artifactRef string, id Identity, now time.Time) Notice {
	return Notice{
		Type:        noticeType,
		RecordID:    id.RecordID.String(),
		Email:       c.Email,
		Phone:       c.Phone,
		FullName:    id.FullName,
		ArtifactURL: artifactRef,
		SentAt:      now,
	}
}

func deliveryError(err error) error {
	return dErrors.Wrap(err, dErrors.CodeNotificationDelivery, "pre-adverse notice delivery failed")
}

// Kafka publishes notices synchronously, keyed by record id so consumers
// can drop redeliveries.
type Kafka struct {
	publisher producer.Publisher
	topic     string
	now       func() time.Time
}

type KafkaOption func(*Kafka)

func WithTopic(topic string) KafkaOption {
	return func(k *Kafka) {
		if topic != "" {
			k.topic = topic
		}
	}
}

func WithNow(now func() time.Time) KafkaOption {
	return func(k *Kafka) { k.now = now }
}

func NewKafka(publisher producer.Publisher, opts ...KafkaOption) *Kafka {
	k := &Kafka{publisher: publisher, topic: DefaultTopic, now: time.Now}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kafka) SendPreAdverseNotice(ctx context.Context, c Contact, artifactRef string, id Identity) error {
	body, err := json.Marshal(newNotice(c, artifactRef, id, k.now()))
	if err != nil {
		return deliveryError(fmt.Errorf("encode notice: %w", err))
	}
	err = k.publisher.Produce(ctx, &producer.Message{
		Topic: k.topic,
		Key:   []byte(id.RecordID.String()),
		Value: body,
		Headers: map[string]string{
			"notice_type": noticeType,
		},
	})
	if err != nil {
		return deliveryError(err)
	}
	return nil
}

// Log only writes the notice to the log. Development use.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendPreAdverseNotice(ctx context.Context, c Contact, artifactRef string, id Identity) error {
	l.logger.InfoContext(ctx, "pre-adverse notice",
		"record_id", id.RecordID.String(),
		"email", privacy.RedactEmail(c.Email),
		"artifact_url", artifactRef,
	)
	return nil
}

// Recorder keeps notices in memory and can be scripted to fail.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	errs    []error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailNext makes the next len(errs) sends fail with errs in order.
func (r *Recorder) FailNext(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, errs...)
}

func (r *Recorder) SendPreAdverseNotice(_ context.Context, c Contact, artifactRef string, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return deliveryError(err)
		}
	}
	r.notices = append(r.notices, newNotice(c, artifactRef, id, time.Now()))
	return nil
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}
