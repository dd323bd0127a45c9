package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SchemaPackage is the protobuf package of the event schema. The descriptor
// below mirrors api/proto/payments/v1/events.proto.
const SchemaPackage = "payments.schema.v1"

const (
	paymentDataMessage   protoreflect.Name = "PaymentData"
	customerMessage      protoreflect.Name = "Customer"
	paymentEventMessage  protoreflect.Name = "PaymentEvent"
	enrichedEventMessage protoreflect.Name = "EnrichedPaymentEvent"
	paymentStatusEnum    protoreflect.Name = "PaymentStatus"
)

type schema struct {
	paymentData   protoreflect.MessageDescriptor
	customer      protoreflect.MessageDescriptor
	paymentEvent  protoreflect.MessageDescriptor
	enrichedEvent protoreflect.MessageDescriptor
	paymentStatus protoreflect.EnumDescriptor
}

func field(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   kind.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func eventFields() []*descriptorpb.FieldDescriptorProto {
	return []*descriptorpb.FieldDescriptorProto{
		field("payment_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
		field("idempotency_key", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
		field("customer_id", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
		field("merchant_id", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
		field("payment_data", 5, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+SchemaPackage+".PaymentData"),
	}
}

func schemaFileProto() *descriptorpb.FileDescriptorProto {
	enrichedFields := append(eventFields(),
		field("customer", 6, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+SchemaPackage+".Customer"),
	)

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("payments/v1/events.proto"),
		Package:    proto.String(SchemaPackage),
		Syntax:     proto.String("proto3"),
		Dependency: []string{timestamppb.File_google_protobuf_timestamp_proto.Path()},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String(string(paymentStatusEnum)),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("PAYMENT_STATUS_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("PAYMENT_PENDING"), Number: proto.Int32(1)},
				{Name: proto.String("PAYMENT_COMPLETED"), Number: proto.Int32(2)},
				{Name: proto.String("PAYMENT_FAILED"), Number: proto.Int32(3)},
				{Name: proto.String("PAYMENT_REFUNDED"), Number: proto.Int32(4)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String(string(paymentDataMessage)),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("amount", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
					field("currency", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
					field("payment_status", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+SchemaPackage+".PaymentStatus"),
					field("created_at", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".google.protobuf.Timestamp"),
				},
			},
			{
				Name: proto.String(string(customerMessage)),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
					field("email", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
					field("name", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				},
			},
			{
				Name:  proto.String(string(paymentEventMessage)),
				Field: eventFields(),
			},
			{
				Name:  proto.String(string(enrichedEventMessage)),
				Field: enrichedFields,
			},
		},
	}
}

func loadSchema() (*schema, error) {
	file, err := protodesc.NewFile(schemaFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to build event schema descriptor: %w", err)
	}

	messages := file.Messages()
	s := &schema{
		paymentData:   messages.ByName(paymentDataMessage),
		customer:      messages.ByName(customerMessage),
		paymentEvent:  messages.ByName(paymentEventMessage),
		enrichedEvent: messages.ByName(enrichedEventMessage),
		paymentStatus: file.Enums().ByName(paymentStatusEnum),
	}
	return s, nil
}
