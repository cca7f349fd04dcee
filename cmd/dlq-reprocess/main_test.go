package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

const (
	testSourceTopic = "storefront.dlq"
	testTargetTopic = "storefront.order.events"
)

func deadLetterMessage(t *testing.T, offset int64) *sarama.ConsumerMessage {
	t.Helper()

	dead, err := json.Marshal(outbox.DeadLetter{
		OutboxID:      "outbox-1",
		AggregateType: "order",
		AggregateID:   "ORD-12345678",
		EventType:     "order.created",
		Payload:       json.RawMessage(`{"order_number":"ORD-12345678","total":"1495.97"}`),
		PublishError:  "broker unavailable",
		Attempts:      3,
		FailedAt:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal dead letter failed: %v", err)
	}
	raw, err := json.Marshal(kafka.Envelope{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "ORD-12345678",
		EventType:     "order.created",
		Payload:       dead,
	})
	if err != nil {
		t.Fatalf("marshal envelope failed: %v", err)
	}
	return &sarama.ConsumerMessage{Partition: 0, Offset: offset, Value: raw}
}

func testConfig(execute bool) config {
	return config{
		sourceTopic: testSourceTopic,
		targetTopic: testTargetTopic,
		limit:       10,
		execute:     execute,
		idleTimeout: 20 * time.Millisecond,
	}
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestExtractReplayMessage_DeadLetter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	got, err := extractReplayMessage(deadLetterMessage(t, 0).Value, testTargetTopic, now)
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if got.topic != testTargetTopic {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
	if got.key != "ORD-12345678" {
		t.Fatalf("unexpected key: %s", got.key)
	}
	if got.headers[kafka.HeaderEventType] != "order.created" || got.headers[kafka.HeaderOutboxID] != "outbox-1" {
		t.Fatalf("unexpected headers: %+v", got.headers)
	}

	var replay kafka.Envelope
	if err := json.Unmarshal(got.value, &replay); err != nil {
		t.Fatalf("decode replay failed: %v", err)
	}
	if replay.ID != "outbox-1" || replay.EventType != "order.created" {
		t.Fatalf("unexpected replay envelope: %+v", replay)
	}
	if !replay.PublishedAt.Equal(now) {
		t.Fatalf("unexpected published_at: %s", replay.PublishedAt)
	}
	if !strings.Contains(string(replay.Payload), `"total":"1495.97"`) {
		t.Fatalf("original payload must be restored, got %s", string(replay.Payload))
	}
}

func TestExtractReplayMessage_InvalidDeadLetter(t *testing.T) {
	raw := []byte(`{"id":"outbox-1","payload":"not-an-object"}`)
	if _, err := extractReplayMessage(raw, testTargetTopic, time.Now()); err == nil {
		t.Fatal("expected decode error for invalid dead letter")
	}

	raw = []byte(`{"id":"outbox-1","payload":{"outbox_id":"outbox-1"}}`)
	if _, err := extractReplayMessage(raw, testTargetTopic, time.Now()); err == nil {
		t.Fatal("expected error when original payload is missing")
	}
}

func TestExtractReplayMessage_UnknownPayload(t *testing.T) {
	_, err := extractReplayMessage([]byte("plain text"), testTargetTopic, time.Now())
	if !errors.Is(err, errNotDeadLetter) {
		t.Fatalf("expected errNotDeadLetter, got %v", err)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", " ", "value", "other"); got != "value" {
		t.Fatalf("unexpected first non-empty value: %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-limit=5",
		"-execute",
		"-from-newest",
		"-idle-timeout=500ms",
	}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 2 {
			t.Fatalf("unexpected brokers: %+v", cfg.brokers)
		}
		if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicOrderEvents {
			t.Fatalf("unexpected topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
		}
		if cfg.limit != 5 || !cfg.execute || !cfg.fromNewest || cfg.idleTimeout != 500*time.Millisecond {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing brokers", args: nil, wantErr: "kafka brokers are required"},
		{name: "bad limit", args: []string{"-brokers=b:9092", "-limit=0"}, wantErr: "limit must be > 0"},
		{name: "bad idle timeout", args: []string{"-brokers=b:9092", "-idle-timeout=0s"}, wantErr: "idle-timeout must be > 0"},
		{name: "same topics", args: []string{"-brokers=b:9092", "-target-topic=storefront.dlq"}, wantErr: "must differ"},
		{name: "empty source", args: []string{"-brokers=b:9092", "-source-topic= "}, wantErr: "source-topic is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withFlagArgs(t, tc.args, func() {
				_, err := readConfig()
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
			})
		})
	}
}

func TestProcessPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{deadLetterMessage(t, 0)}),
		},
	}

	stats, err := processPartition(context.Background(), consumer, client, nil, testConfig(false), 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 1 || stats.replayed != 1 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 0 {
		t.Fatalf("unexpected consume calls: %+v", consumer.calls)
	}
}

func TestProcessPartition_Execute(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				deadLetterMessage(t, 0),
				{Partition: 0, Offset: 1, Value: []byte("garbage")},
			}),
		},
	}
	producer := &stubReplayProducer{}

	stats, err := processPartition(context.Background(), consumer, client, producer, testConfig(true), 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 2 || stats.replayed != 1 || stats.skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected one producer call, got %d", len(producer.sent))
	}
	sent := producer.sent[0]
	if sent.topic != testTargetTopic || sent.key != "ORD-12345678" {
		t.Fatalf("unexpected replay target: %+v", sent)
	}
	if sent.headers[kafka.HeaderReplayedFrom] != "storefront.dlq/0/0" {
		t.Fatalf("unexpected replayed-from header: %q", sent.headers[kafka.HeaderReplayedFrom])
	}
}

func TestProcessPartition_FromNewest(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 2, newest: 10}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(nil)},
	}
	cfg := testConfig(false)
	cfg.fromNewest = true

	if _, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 3); err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 7 {
		t.Fatalf("expected consume from offset 7, got %+v", consumer.calls)
	}
}

func TestProcessPartition_ErrorBranches(t *testing.T) {
	cfg := testConfig(true)

	clientOffsetErr := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("offset")}}
	if _, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, clientOffsetErr, &stubReplayProducer{}, cfg, 0, 1); err == nil {
		t.Fatal("expected offset error")
	}

	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumeErr := &stubPartitionConsumerSource{consumeErr: errors.New("consume")}
	if _, err := processPartition(context.Background(), consumeErr, client, &stubReplayProducer{}, cfg, 0, 1); err == nil {
		t.Fatal("expected consume error")
	}

	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{deadLetterMessage(t, 0)}),
		},
	}
	producer := &stubReplayProducer{sendErr: errors.New("send")}
	if _, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 1); !errors.Is(err, errPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}

	empty := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 3, newest: 3}}}
	stats, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, empty, nil, cfg, 0, 1)
	if err != nil || stats.processed != 0 {
		t.Fatalf("expected no-op for empty partition, got %+v %v", stats, err)
	}
}

func TestProcessPartition_IdleTimeoutAndContext(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 5}}}
	idle := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: idle}}

	stats, err := processPartition(context.Background(), consumer, client, nil, testConfig(false), 0, 10)
	if err != nil {
		t.Fatalf("idle timeout must end partition without error: %v", err)
	}
	if stats.processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !idle.closed {
		t.Fatal("partition consumer must be closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig(false)
	cfg.idleTimeout = time.Minute
	if _, err := processPartition(ctx, consumer, client, nil, cfg, 0, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunReplay(t *testing.T) {
	if _, err := runReplay(context.Background(), testConfig(false), nil, nil, nil); err == nil {
		t.Fatal("expected error without client and consumer")
	}
	if _, err := runReplay(context.Background(), testConfig(true), &stubOffsetClient{}, &stubPartitionConsumerSource{}, nil); err == nil {
		t.Fatal("expected error without producer in execute mode")
	}

	failing := &stubOffsetClient{partitionsErr: errors.New("metadata")}
	if _, err := runReplay(context.Background(), testConfig(false), failing, &stubPartitionConsumerSource{}, nil); err == nil {
		t.Fatal("expected partitions error")
	}

	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 1},
			1: {oldest: 0, newest: 1},
		},
	}
	msg := deadLetterMessage(t, 0)
	second := *msg
	second.Partition = 1
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{msg}),
			1: closedPartitionConsumer([]*sarama.ConsumerMessage{&second}),
		},
	}
	cfg := testConfig(false)
	cfg.limit = 1

	stats, err := runReplay(context.Background(), cfg, client, consumer, nil)
	if err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if stats.processed != 1 {
		t.Fatalf("limit must bound processed messages, got %+v", stats)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].partition != 0 {
		t.Fatalf("partitions must be scanned in order, got %+v", consumer.calls)
	}
}

func TestRun_UsesDependencies(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 1}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{deadLetterMessage(t, 0)}),
		},
	}
	producer := &stubReplayProducer{}
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, producer, nil
	}

	if err := run(context.Background(), testConfig(true)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected one replayed message, got %d", len(producer.sent))
	}
	if !client.closed || !consumer.closed || !producer.closed {
		t.Fatal("dependencies must be closed after run")
	}

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return nil, nil, nil, errors.New("dial")
	}
	if err := run(context.Background(), testConfig(true)); err == nil {
		t.Fatal("expected dependency error")
	}
}

func TestMain_SuccessWithStubbedDeps(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{deadLetterMessage(t, 0)}),
		},
	}
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, nil, nil
	}

	withFlagArgs(t, []string{"-brokers=broker:9092", "-limit=1", "-idle-timeout=50ms"}, func() {
		main()
	})
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("boom")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"dlq-reprocess"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	errCh := make(chan *sarama.ConsumerError)
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	close(errCh)
	return &stubPartitionConsumer{messages: msgCh, errors: errCh}
}

type sentReplay struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type stubReplayProducer struct {
	sendErr error
	sent    []sentReplay
	closed  bool
}

func (s *stubReplayProducer) Send(topic, key string, value []byte, headers map[string]string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentReplay{topic: topic, key: key, value: value, headers: headers})
	return nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
