package codec

import "encoding/json"

// JSON is the default codec for POS resource lists; the backend speaks JSON
// already, so cached bytes stay diffable by hand. The zero value is ready
// to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
