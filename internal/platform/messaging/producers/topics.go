package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const topicReadRetries = 5

// ensureTopic creates the topic when the broker does not know it yet.
// Partition reads are retried because a freshly started broker can take a
// few seconds before metadata is served.
func ensureTopic(conn *kafka.Conn, topic string, partitions, replicationFactor int, log *slog.Logger) error {
	var existing []kafka.Partition
	var err error

	for attempt := 1; attempt <= topicReadRetries; attempt++ {
		existing, err = conn.ReadPartitions(topic)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}

	if len(existing) > 0 {
		log.Info("Kafka topic already exists", "topic", topic, "partitions", len(existing))
		return nil
	}

	if partitions <= 0 {
		partitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	log.Info("Creating Kafka topic", "topic", topic, "partitions", partitions)
	if err := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}

	return nil
}
