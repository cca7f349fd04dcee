package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	replayClientID     = "storefront-dlq-reprocess"
)

var errNotDeadLetter = errors.New("message is not a storefront dead letter")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// replayMessage — событие заказа, восстановленное из dead letter.
type replayMessage struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// replayProducer реализуется *kafka.Producer.
type replayProducer interface {
	Send(topic, key string, value []byte, headers map[string]string) error
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = replayClientID
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}

	if !cfg.execute {
		return client, consumer, nil, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, replayClientID, log.WithField("component", "dlq-replay"))
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, err
	}

	return client, consumer, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "target topic for replay")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	flag.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)

	var errs []error
	if len(cfg.brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)"))
	}
	if cfg.sourceTopic == "" {
		errs = append(errs, errors.New("source-topic is required"))
	}
	if cfg.targetTopic == "" {
		errs = append(errs, errors.New("target-topic is required"))
	}
	if cfg.sourceTopic != "" && cfg.sourceTopic == cfg.targetTopic {
		errs = append(errs, errors.New("source-topic and target-topic must differ"))
	}
	if cfg.limit <= 0 {
		errs = append(errs, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		errs = append(errs, errors.New("idle-timeout must be > 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	_, err = runReplay(ctx, cfg, client, consumer, producer)
	return err
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) (replayStats, error) {
	var total replayStats
	if client == nil || consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := processPartition(ctx, consumer, client, producer, cfg, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")

	return total, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer replayProducer,
	cfg config,
	partition int32,
	limit int,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = max(newest-int64(limit), oldest)
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	messages, consumeErrors := pc.Messages(), pc.Errors()
	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idleTimer.C:
			return stats, nil
		case consumeErr, ok := <-consumeErrors:
			if !ok {
				consumeErrors = nil
				continue
			}
			if consumeErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumeErr)
			}
		case msg, ok := <-messages:
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idleTimer.Reset(cfg.idleTimeout)

			stats.processed++
			if err := replayOne(msg, cfg, producer); err != nil {
				if errors.Is(err, errPublish) {
					return stats, err
				}
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip dlq message")
			} else {
				stats.replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}

	return stats, nil
}

var errPublish = errors.New("publish replay message")

func replayOne(msg *sarama.ConsumerMessage, cfg config, producer replayProducer) error {
	replay, err := extractReplayMessage(msg.Value, cfg.targetTopic, time.Now().UTC())
	if err != nil {
		return err
	}
	replay.headers[kafka.HeaderReplayedFrom] = fmt.Sprintf("%s/%d/%d", cfg.sourceTopic, msg.Partition, msg.Offset)

	if !cfg.execute {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": replay.topic,
			"key":          replay.key,
		}).Info("dlq replay candidate")
		return nil
	}
	if err := producer.Send(replay.topic, replay.key, replay.value, replay.headers); err != nil {
		return fmt.Errorf("%w: %v", errPublish, err)
	}
	return nil
}

// extractReplayMessage разворачивает сообщение DLQ: kafka.Envelope, в payload которого лежит
// outbox.DeadLetter с исходным событием заказа.
func extractReplayMessage(raw []byte, targetTopic string, now time.Time) (replayMessage, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, errNotDeadLetter
	}

	var dead outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &dead); err != nil {
		return replayMessage{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(dead.Payload) == 0 || string(dead.Payload) == "null" {
		return replayMessage{}, errors.New("dead letter does not contain original event payload")
	}

	replay := kafka.Envelope{
		ID:            firstNonEmpty(dead.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(dead.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, envelope.EventType),
		Payload:       dead.Payload,
		PublishedAt:   now,
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	return replayMessage{
		topic: targetTopic,
		key:   firstNonEmpty(replay.AggregateID, replay.ID),
		value: encoded,
		headers: map[string]string{
			kafka.HeaderEventType:     replay.EventType,
			kafka.HeaderAggregateType: replay.AggregateType,
			kafka.HeaderOutboxID:      replay.ID,
			kafka.HeaderOriginalTopic: targetTopic,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
