package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/openrender/pdfrender/internal/domain/rendering"
)

var envelopeValidator = validator.New()

// DecodeEnvelope parses the §6 queue wire format: camelCase JSON,
// RFC3339 timestamps, standard base64. Kept as a free function (not
// wired into the core) so the core never mandates a specific encoding —
// a deployment could substitute a different decode func entirely.
func DecodeEnvelope(body []byte) (rendering.Envelope, error) {
	var e rendering.Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return rendering.Envelope{}, err
	}
	if err := envelopeValidator.Struct(e); err != nil {
		return rendering.Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return e, nil
}

func encodeReply(reply rendering.ReplyEnvelope) ([]byte, error) {
	return json.Marshal(reply)
}
