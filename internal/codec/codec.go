package codec

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"paynotify/internal/domain"
)

// Codec converts payment events to and from the protobuf wire format and
// renders enriched events to their canonical JSON projection.
type Codec struct {
	schema  *schema
	logger  *zap.Logger
	marshal proto.MarshalOptions
	json    protojson.MarshalOptions
}

func New(logger *zap.Logger) (*Codec, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	return &Codec{
		schema:  s,
		logger:  logger,
		marshal: proto.MarshalOptions{Deterministic: true},
		json:    protojson.MarshalOptions{},
	}, nil
}

func (c *Codec) EncodePaymentEvent(event domain.PaymentEvent) ([]byte, error) {
	m := dynamicpb.NewMessage(c.schema.paymentEvent)
	c.fillEvent(m, event)
	data, err := c.marshal.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PaymentEvent %s: %w", event.PaymentID, err)
	}
	return data, nil
}

func (c *Codec) EncodeEnrichedPaymentEvent(event domain.EnrichedPaymentEvent) ([]byte, error) {
	data, err := c.marshal.Marshal(c.enrichedMessage(event))
	if err != nil {
		return nil, fmt.Errorf("failed to encode EnrichedPaymentEvent %s: %w", event.PaymentID, err)
	}
	return data, nil
}

// DecodePaymentEvent never fails: bytes that do not conform to the schema
// yield a Malformed result, which is logged here and nowhere else. fields
// identify the record in that log.
func (c *Codec) DecodePaymentEvent(data []byte, fields ...zap.Field) Result[domain.PaymentEvent] {
	m, err := c.unmarshal(c.schema.paymentEvent, data)
	if err == nil {
		var event domain.PaymentEvent
		event, err = c.readEvent(m)
		if err == nil {
			return decoded(event)
		}
	}
	c.logger.Error("Error deserializing PaymentEvent message",
		append(fields[:len(fields):len(fields)], zap.Error(err), zap.Int("size", len(data)))...,
	)
	return malformed[domain.PaymentEvent](err)
}

func (c *Codec) DecodeEnrichedPaymentEvent(data []byte, fields ...zap.Field) Result[domain.EnrichedPaymentEvent] {
	m, err := c.unmarshal(c.schema.enrichedEvent, data)
	if err == nil {
		var event domain.EnrichedPaymentEvent
		event, err = c.readEnriched(m)
		if err == nil {
			return decoded(event)
		}
	}
	c.logger.Error("Error deserializing EnrichedPaymentEvent message",
		append(fields[:len(fields):len(fields)], zap.Error(err), zap.Int("size", len(data)))...,
	)
	return malformed[domain.EnrichedPaymentEvent](err)
}

// RenderJSON produces the canonical JSON projection of the enriched event:
// lowerCamelCase field names, 64-bit integers as decimal strings, enums by
// name, RFC 3339 timestamps and default values omitted.
func (c *Codec) RenderJSON(event domain.EnrichedPaymentEvent) ([]byte, error) {
	data, err := c.json.Marshal(c.enrichedMessage(event))
	if err != nil {
		return nil, fmt.Errorf("failed to render EnrichedPaymentEvent %s as JSON: %w", event.PaymentID, err)
	}
	return data, nil
}

func (c *Codec) unmarshal(md protoreflect.MessageDescriptor, data []byte) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("invalid %s bytes: %w", md.Name(), err)
	}
	if err := checkConformance(m); err != nil {
		return nil, err
	}
	return m, nil
}

// checkConformance rejects messages carrying fields or enum numbers that the
// schema does not define.
func checkConformance(m protoreflect.Message) error {
	if len(m.GetUnknown()) > 0 {
		return fmt.Errorf("%s contains fields outside the schema", m.Descriptor().FullName())
	}
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch fd.Kind() {
		case protoreflect.EnumKind:
			if fd.Enum().Values().ByNumber(v.Enum()) == nil {
				err = fmt.Errorf("%s has undefined enum value %d", fd.FullName(), v.Enum())
			}
		case protoreflect.MessageKind:
			err = checkConformance(v.Message())
		}
		return err == nil
	})
	return err
}

func (c *Codec) enrichedMessage(event domain.EnrichedPaymentEvent) *dynamicpb.Message {
	m := dynamicpb.NewMessage(c.schema.enrichedEvent)
	c.fillEvent(m, event.PaymentEvent)

	fd := m.Descriptor().Fields().ByName("customer")
	customer := m.NewField(fd).Message()
	fields := customer.Descriptor().Fields()
	customer.Set(fields.ByName("id"), protoreflect.ValueOfInt64(event.Customer.ID))
	customer.Set(fields.ByName("email"), protoreflect.ValueOfString(event.Customer.Email))
	customer.Set(fields.ByName("name"), protoreflect.ValueOfString(event.Customer.Name))
	m.Set(fd, protoreflect.ValueOfMessage(customer))
	return m
}

// fillEvent writes the fields shared by PaymentEvent and EnrichedPaymentEvent.
func (c *Codec) fillEvent(m protoreflect.Message, event domain.PaymentEvent) {
	fields := m.Descriptor().Fields()
	m.Set(fields.ByName("payment_id"), protoreflect.ValueOfString(event.PaymentID))
	m.Set(fields.ByName("idempotency_key"), protoreflect.ValueOfString(event.IdempotencyKey))
	m.Set(fields.ByName("customer_id"), protoreflect.ValueOfInt64(event.CustomerID))
	m.Set(fields.ByName("merchant_id"), protoreflect.ValueOfInt64(event.MerchantID))

	fd := fields.ByName("payment_data")
	data := m.NewField(fd).Message()
	dataFields := data.Descriptor().Fields()
	data.Set(dataFields.ByName("amount"), protoreflect.ValueOfInt64(event.PaymentData.Amount))
	data.Set(dataFields.ByName("currency"), protoreflect.ValueOfString(event.PaymentData.Currency))
	data.Set(dataFields.ByName("payment_status"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(event.PaymentData.PaymentStatus)))
	if !event.PaymentData.CreatedAt.IsZero() {
		tsField := dataFields.ByName("created_at")
		ts := data.NewField(tsField).Message()
		tsFields := ts.Descriptor().Fields()
		createdAt := event.PaymentData.CreatedAt
		ts.Set(tsFields.ByName("seconds"), protoreflect.ValueOfInt64(createdAt.Unix()))
		ts.Set(tsFields.ByName("nanos"), protoreflect.ValueOfInt32(int32(createdAt.Nanosecond())))
		data.Set(tsField, protoreflect.ValueOfMessage(ts))
	}
	m.Set(fd, protoreflect.ValueOfMessage(data))
}

func (c *Codec) readEvent(m protoreflect.Message) (domain.PaymentEvent, error) {
	fields := m.Descriptor().Fields()
	event := domain.PaymentEvent{
		PaymentID:      m.Get(fields.ByName("payment_id")).String(),
		IdempotencyKey: m.Get(fields.ByName("idempotency_key")).String(),
		CustomerID:     m.Get(fields.ByName("customer_id")).Int(),
		MerchantID:     m.Get(fields.ByName("merchant_id")).Int(),
	}
	if event.PaymentID == "" {
		return domain.PaymentEvent{}, errors.New("payment_id is missing")
	}

	fd := fields.ByName("payment_data")
	if !m.Has(fd) {
		return domain.PaymentEvent{}, fmt.Errorf("payment_data is missing for payment %s", event.PaymentID)
	}
	data := m.Get(fd).Message()
	dataFields := data.Descriptor().Fields()
	event.PaymentData = domain.PaymentData{
		Amount:        data.Get(dataFields.ByName("amount")).Int(),
		Currency:      data.Get(dataFields.ByName("currency")).String(),
		PaymentStatus: domain.PaymentStatus(data.Get(dataFields.ByName("payment_status")).Enum()),
	}
	if tsField := dataFields.ByName("created_at"); data.Has(tsField) {
		createdAt, err := readTimestamp(data.Get(tsField).Message())
		if err != nil {
			return domain.PaymentEvent{}, fmt.Errorf("created_at is invalid for payment %s: %w", event.PaymentID, err)
		}
		event.PaymentData.CreatedAt = createdAt
	}
	return event, nil
}

func (c *Codec) readEnriched(m protoreflect.Message) (domain.EnrichedPaymentEvent, error) {
	event, err := c.readEvent(m)
	if err != nil {
		return domain.EnrichedPaymentEvent{}, err
	}

	fd := m.Descriptor().Fields().ByName("customer")
	if !m.Has(fd) {
		return domain.EnrichedPaymentEvent{}, fmt.Errorf("customer is missing for payment %s", event.PaymentID)
	}
	customer := m.Get(fd).Message()
	fields := customer.Descriptor().Fields()
	enriched := domain.NewEnrichedPaymentEvent(event, domain.Customer{
		ID:    customer.Get(fields.ByName("id")).Int(),
		Email: customer.Get(fields.ByName("email")).String(),
		Name:  customer.Get(fields.ByName("name")).String(),
	})
	if enriched.Customer.ID != enriched.CustomerID {
		return domain.EnrichedPaymentEvent{}, fmt.Errorf("customer.id %d does not match customer_id %d for payment %s",
			enriched.Customer.ID, enriched.CustomerID, event.PaymentID)
	}
	return enriched, nil
}

func readTimestamp(m protoreflect.Message) (time.Time, error) {
	fields := m.Descriptor().Fields()
	ts := &timestamppb.Timestamp{
		Seconds: m.Get(fields.ByName("seconds")).Int(),
		Nanos:   int32(m.Get(fields.ByName("nanos")).Int()),
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, err
	}
	return ts.AsTime(), nil
}
