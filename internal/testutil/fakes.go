package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"paynotify/internal/domain"
)

// MemoryCustomers is an in-memory customer store. Customers may be added
// while a consumer is retrying against it.
type MemoryCustomers struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	lookups   int
}

func NewMemoryCustomers(customers ...domain.Customer) *MemoryCustomers {
	m := &MemoryCustomers{customers: map[int64]domain.Customer{}}
	for _, c := range customers {
		m.customers[c.ID] = c
	}
	return m
}

func (m *MemoryCustomers) Put(customer domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
}

func (m *MemoryCustomers) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func (m *MemoryCustomers) GetCustomer(_ context.Context, customerID int64) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	customer, ok := m.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, domain.ErrCustomerNotFound)
	}
	return &customer, nil
}

// MemoryLedger is an in-memory publish ledger. LookupErr and RecordErr, when
// set, are returned by every lookup or record call.
type MemoryLedger struct {
	mu        sync.Mutex
	records   map[string]domain.PublishRecord
	LookupErr error
	RecordErr error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: map[string]domain.PublishRecord{}}
}

func (l *MemoryLedger) IsPublished(_ context.Context, idempotencyKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LookupErr != nil {
		return false, l.LookupErr
	}
	_, ok := l.records[idempotencyKey]
	return ok, nil
}

func (l *MemoryLedger) Record(idempotencyKey string) (domain.PublishRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[idempotencyKey]
	return record, ok
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *MemoryLedger) RecordPublished(_ context.Context, record domain.PublishRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RecordErr != nil {
		return l.RecordErr
	}
	if _, ok := l.records[record.IdempotencyKey]; !ok {
		l.records[record.IdempotencyKey] = record
	}
	return nil
}

// RecordingProducer keeps every produced record as a kafka.Message, numbering
// offsets per topic from zero. The first Failures calls fail without
// recording anything.
type RecordingProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	offsets  map[string]int64
	Failures int
}

func NewRecordingProducer() *RecordingProducer {
	return &RecordingProducer{offsets: map[string]int64{}}
}

func (p *RecordingProducer) Produce(_ context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Failures > 0 {
		p.Failures--
		return errors.New("kafka: request timed out")
	}
	p.messages = append(p.messages, kafka.Message{
		Topic:   topic,
		Offset:  p.offsets[topic],
		Key:     key,
		Value:   value,
		Headers: headers,
	})
	p.offsets[topic]++
	return nil
}

func (p *RecordingProducer) Messages() []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Message(nil), p.messages...)
}
