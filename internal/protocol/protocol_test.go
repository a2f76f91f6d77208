package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRoundTripsThroughEnvelope(t *testing.T) {
	raw, err := Encode(TypeCursorMove, CursorMovePayload{X: 1.5, Y: 2.5})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, TypeCursorMove, env.Type)

	var payload CursorMovePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, 1.5, payload.X)
	require.Equal(t, 2.5, payload.Y)
}

func TestEnvelopeDecodesUnknownTypeWithoutError(t *testing.T) {
	raw := []byte(`{"type":"SOMETHING_UNKNOWN","payload":{"a":1}}`)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, "SOMETHING_UNKNOWN", env.Type)
}

func TestEnvelopeRejectsMalformedJSON(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`not json`), &env)
	require.Error(t, err)
}
