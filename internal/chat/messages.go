package chat

import (
	"bytes"
	"encoding/json"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
)

const (
	errMessagesJSON  = "Messages must be an array or a valid JSON string."
	errMessagesArray = "Messages must be an array."
)

// DecodeMessages accepts the messages field either as a JSON array or as a
// string holding one, which is how multipart forms carry it.
func DecodeMessages(raw json.RawMessage) ([]ai.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, common.Invalid(errMessagesJSON)
		}
		return DecodeMessagesString(s)
	}
	return decodeArray(raw)
}

func DecodeMessagesString(s string) ([]ai.Message, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, common.Invalid(errMessagesJSON)
	}
	return decodeArray(json.RawMessage(s))
}

func decodeArray(raw json.RawMessage) ([]ai.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, common.Invalid(errMessagesArray)
	}
	var msgs []ai.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, common.Invalid(errMessagesArray)
	}
	if msgs == nil {
		msgs = []ai.Message{}
	}
	return msgs, nil
}
