// Package events publishes the outcome of code lookups to Kafka.
package events

import (
	"MedsetuPortal/pkg/sl"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

const (
	ScreenTranslator = "translator"
	ScreenPatients   = "patients"
)

type LookupEvent struct {
	ID         string    `json:"id"`
	Session    string    `json:"session"`
	Screen     string    `json:"screen"`
	Code       string    `json:"code"`
	Outcome    Outcome   `json:"outcome"`
	Candidates int       `json:"candidates"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(e LookupEvent)
	Close() error
}

// Nop drops every event. Used when no Kafka host is configured.
type Nop struct{}

func (Nop) Publish(LookupEvent) {}
func (Nop) Close() error        { return nil }

type Kafka struct {
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup

	// mu guards closed and every send on the producer input.
	mu     sync.RWMutex
	closed bool
}

func NewKafka(addr []string, topic string) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer, err: %s", err.Error())
	}

	return newKafka(producer, topic), nil
}

func newKafka(producer sarama.AsyncProducer, topic string) *Kafka {
	k := &Kafka{
		producer: producer,
		topic:    topic,
	}

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for perr := range producer.Errors() {
			slog.Error("failed to publish lookup event", slog.String("topic", topic), sl.Error(perr.Err))
		}
	}()

	return k
}

// Publish queues e. Events arriving after Close are dropped, since lookups
// may still settle while the server shuts down.
func (k *Kafka) Publish(e LookupEvent) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		slog.Error("failed to marshal lookup event", sl.Error(err))
		return
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		slog.Warn("dropping lookup event after publisher close", slog.String("code", e.Code), slog.String("outcome", string(e.Outcome)))
		return
	}

	k.producer.Input() <- &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.ID),
		Value: sarama.ByteEncoder(data),
	}
}

// Close flushes buffered events and waits for the error drain to finish.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	err := k.producer.Close()
	k.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
