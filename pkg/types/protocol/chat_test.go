package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamEventFrames(t *testing.T) {
	raw, err := json.Marshal(ChunkEvent("hello"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"chunk","content":"hello"}`, string(raw))

	raw, err = json.Marshal(DoneEvent("12345"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"done","messageId":"12345"}`, string(raw))

	raw, err = json.Marshal(ErrorEvent("boom"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"boom"}`, string(raw))
}

func TestGenConversationTurnKey(t *testing.T) {
	assert.Equal(t, "conversation:turn:abc", GenConversationTurnKey("abc"))
}
