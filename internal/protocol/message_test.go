package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKeepsRawDataVerbatim(t *testing.T) {
	raw := json.RawMessage(`{"sdp":"v=0\r\n","type":"offer","extra":[1,2]}`)

	frame, err := Encode(TypeOffer, "conn-a", raw)
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeOffer, env.Type)
	assert.Equal(t, "conn-a", env.From)
	assert.JSONEq(t, string(raw), string(env.Data))
}

func TestEncodeWithoutData(t *testing.T) {
	frame, err := Encode(TypePong, "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	require.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestIsRelayed(t *testing.T) {
	assert.True(t, IsRelayed(TypeOffer))
	assert.True(t, IsRelayed(TypeAnswer))
	assert.True(t, IsRelayed(TypeICECandidate))
	assert.False(t, IsRelayed(TypeJoinRoom))
	assert.False(t, IsRelayed(TypeToggleMic))
}
