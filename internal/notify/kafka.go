// Package notify publishes run summaries to external transports.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"bankpipe/internal/pipeline"

	"github.com/segmentio/kafka-go"
)

// runEvent is the wire shape of a run announcement. It carries the
// aggregate numbers only; per-file detail stays in the log and the
// quarantine output.
type runEvent struct {
	RunID            string `json:"run_id"`
	Succeeded        bool   `json:"succeeded"`
	FilesDiscovered  int    `json:"files_discovered"`
	FilesCompleted   int    `json:"files_completed"`
	FilesFailed      int    `json:"files_failed"`
	FilesSkipped     int    `json:"files_skipped"`
	ValidRecords     int    `json:"valid_records"`
	InvalidRecords   int    `json:"invalid_records"`
	DuplicateRows    int    `json:"duplicate_rows"`
	AnomalousAmounts int    `json:"anomalous_amounts"`
	DurationMillis   int64  `json:"duration_ms"`
}

// KafkaNotifier announces finished runs on a Kafka topic.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier connects a notifier to the given brokers and topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Notify implements pipeline.Notifier. Messages are keyed by run ID so
// partitioning keeps each run's announcements together.
func (n *KafkaNotifier) Notify(ctx context.Context, summary *pipeline.RunSummary) error {
	event := runEvent{
		RunID:            summary.RunID.String(),
		Succeeded:        summary.Succeeded(),
		FilesDiscovered:  summary.FilesDiscovered,
		FilesCompleted:   summary.FilesCompleted,
		FilesFailed:      summary.FilesFailed,
		FilesSkipped:     summary.FilesSkipped,
		ValidRecords:     summary.ValidRecords,
		InvalidRecords:   summary.InvalidRecords,
		DuplicateRows:    summary.DuplicateRows,
		AnomalousAmounts: summary.AnomalousAmounts,
		DurationMillis:   summary.Duration.Milliseconds(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode run event: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
