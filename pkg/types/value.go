package types

// ValueKind discriminates the members of Value
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindText
	KindNumber
	KindCollection
)

// String returns the kind name used in error messages
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "string"
	case KindNumber:
		return "number"
	case KindCollection:
		return "stream collection"
	default:
		return "invalid"
	}
}

// Value is a function parameter or evaluation result: Text, Number or *StreamCollection.
// The set is closed; switch on the concrete type at dispatch boundaries.
type Value interface {
	Kind() ValueKind
	String() string
	isValue()
}

// Text is a string value
type Text string

func (Text) isValue() {}

// Kind implements Value
func (Text) Kind() ValueKind {
	return KindText
}

// String returns the text itself
func (t Text) String() string {
	return string(t)
}

// KindOf returns the kind of v, or KindInvalid for nil values including a nil collection
func KindOf(v Value) ValueKind {
	switch x := v.(type) {
	case Text:
		return KindText
	case Number:
		return KindNumber
	case *StreamCollection:
		if x == nil {
			return KindInvalid
		}
		return KindCollection
	default:
		return KindInvalid
	}
}
