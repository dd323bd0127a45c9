package codec

type Kind int

const (
	KindDecoded Kind = iota + 1
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindDecoded:
		return "decoded"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of decoding a record. A Malformed result is
// terminal for the record: it can never become valid through redelivery, so
// consumers skip it without retrying.
type Result[T any] struct {
	Kind   Kind
	Event  T
	Reason error
}

func (r Result[T]) Malformed() bool {
	return r.Kind != KindDecoded
}

func decoded[T any](event T) Result[T] {
	return Result[T]{Kind: KindDecoded, Event: event}
}

func malformed[T any](reason error) Result[T] {
	return Result[T]{Kind: KindMalformed, Reason: reason}
}
