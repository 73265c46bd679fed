package usecase

import "github.com/bytedance/sonic"

// encodeEventPayload serializes an outbox event body. sonic is used
// throughout the ingestion/scoring paths for JSON-shaped payloads the way
// the teacher's ingestion pipeline favors it for provider response bodies.
func encodeEventPayload(v any) ([]byte, error) {
	return sonic.Marshal(v)
}
