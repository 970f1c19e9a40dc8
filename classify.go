package inspector

import (
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

const (
	// BinaryLabel is the reserved bucket for chunks that are not a single JSON object.
	BinaryLabel = "<binary>"
	// UnknownLabel is used for JSON objects without a string "type" field.
	UnknownLabel = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// A Classification is the outcome of decoding one chunk.
// It is one of Binary, JSONObject or JSONNonObject.
type Classification interface {
	// Label is the message type bucket the chunk is accounted under.
	Label() string

	isClassification()
}

// Binary is a chunk that is not valid UTF-8 or not parseable as a single JSON value.
type Binary struct{}

// JSONObject is a chunk that decoded to exactly one JSON object.
type JSONObject struct {
	Fields map[string]any
}

// JSONNonObject is a chunk that decoded to a single JSON value other than an object,
// e.g. an array, a string or null.
type JSONNonObject struct {
	Value any
}

var (
	_ Classification = Binary{}
	_ Classification = JSONObject{}
	_ Classification = JSONNonObject{}
)

func (Binary) Label() string        { return BinaryLabel }
func (JSONNonObject) Label() string { return BinaryLabel }

func (o JSONObject) Label() string {
	if t, ok := o.Fields["type"].(string); ok {
		return t
	}
	return UnknownLabel
}

func (Binary) isClassification()        {}
func (JSONObject) isClassification()    {}
func (JSONNonObject) isClassification() {}

// Classify treats chunk as one candidate message frame and decodes it.
// No reassembly is attempted: a JSON message split across reads, or several
// messages delivered in one read, classify as Binary.
func Classify(chunk []byte) Classification {
	if !utf8.Valid(chunk) {
		return Binary{}
	}
	var v any
	if err := json.Unmarshal(chunk, &v); err != nil {
		return Binary{}
	}
	if fields, ok := v.(map[string]any); ok {
		return JSONObject{Fields: fields}
	}
	return JSONNonObject{Value: v}
}
