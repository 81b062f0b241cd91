package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	f, err := NewRequest("req-1", "chat.send", map[string]string{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, f.Type)
	assert.Equal(t, "req-1", f.ID)
	assert.Equal(t, "chat.send", f.Method)
	assert.JSONEq(t, `{"message":"hi"}`, string(f.Params))
}

func TestNewResponse(t *testing.T) {
	f, err := NewResponse("req-1", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeResponse, f.Type)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
	assert.Nil(t, f.Error)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"req-1","ok":true,"payload":{"n":1}}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	f := NewErrorResponse("req-2", ErrorShape{Code: CodeUnavailable, Message: "down"})
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"req-2","ok":false,"error":{"code":"unavailable","message":"down"}}`, string(data))
}

func TestNewEvent(t *testing.T) {
	f, err := NewEvent(EventChatRender, map[string]string{"requestId": "r"}, 7)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, f.Type)
	assert.Equal(t, EventChatRender, f.Event)
	assert.Equal(t, int64(7), f.Seq)
	assert.Empty(t, f.ID)
}

func TestConnectParams_OmitsNilAuth(t *testing.T) {
	data, err := json.Marshal(ConnectParams{MinProtocol: 1, MaxProtocol: 1, Client: ClientInfo{ID: "c", Version: "1"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"auth"`)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"request", `{"type":"req","id":"1","method":"health"}`, true},
		{"response", `{"type":"res","id":"1","ok":false,"error":{"code":"x","message":"y"}}`, true},
		{"event", `{"type":"event","event":"chat.render","seq":3}`, true},
		{"request without method", `{"type":"req","id":"1"}`, false},
		{"request without id", `{"type":"req","method":"health"}`, false},
		{"response without ok", `{"type":"res","id":"1"}`, false},
		{"unnamed event", `{"type":"event"}`, false},
		{"unknown type", `{"type":"ping"}`, false},
		{"not json", `hello`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tt.in))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformedFrame)
			}
		})
	}
}

func TestParseFrameKeepsID(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"req","id":"r9"}`))
	require.Error(t, err)
	assert.Equal(t, "r9", f.ID)
}

func TestDecodeParams(t *testing.T) {
	var p struct {
		Message string `json:"message"`
	}
	p.Message = "unchanged"
	require.NoError(t, Frame{}.DecodeParams(&p))
	assert.Equal(t, "unchanged", p.Message)

	f, err := NewRequest("r", "chat.send", map[string]string{"message": "hi"})
	require.NoError(t, err)
	require.NoError(t, f.DecodeParams(&p))
	assert.Equal(t, "hi", p.Message)
}

func TestConnectParamsAccepts(t *testing.T) {
	assert.True(t, ConnectParams{}.accepts(1))
	assert.True(t, ConnectParams{MinProtocol: 1, MaxProtocol: 2}.accepts(1))
	assert.False(t, ConnectParams{MinProtocol: 2}.accepts(1))
	assert.False(t, ConnectParams{MaxProtocol: 1}.accepts(2))
}

func TestErrorShapeError(t *testing.T) {
	var err error = ErrorShape{Code: CodeUnavailable, Message: "no loop"}
	assert.EqualError(t, err, "unavailable: no loop")
}
