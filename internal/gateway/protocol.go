package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the only wire protocol revision this gateway speaks.
const ProtocolVersion = 1

// Frame kinds.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Pushed event names.
const (
	EventConnectChallenge = "connect.challenge"
	EventChatRender       = "chat.render"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocolError  = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeUnavailable    = "unavailable"
	CodeAgentError     = "agent_error"
	CodeInternal       = "internal_error"
)

// ErrMalformedFrame is wrapped by every error ParseFrame returns.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the single JSON envelope exchanged over the socket. Which fields
// are set depends on Type:
//
//	req:   ID, Method, Params
//	res:   ID, OK, Payload or Error
//	event: Event, Seq, Payload
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ParseFrame decodes one socket message and checks that the fields its type
// requires are present.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameTypeRequest:
		if f.ID == "" || f.Method == "" {
			return f, fmt.Errorf("%w: request needs id and method", ErrMalformedFrame)
		}
	case FrameTypeResponse:
		if f.ID == "" || f.OK == nil {
			return f, fmt.Errorf("%w: response needs id and ok", ErrMalformedFrame)
		}
	case FrameTypeEvent:
		if f.Event == "" {
			return f, fmt.Errorf("%w: event needs a name", ErrMalformedFrame)
		}
	default:
		return f, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
	return f, nil
}

// DecodeParams unmarshals a request's params. Absent params leave target
// untouched.
func (f Frame) DecodeParams(target any) error {
	if len(f.Params) == 0 {
		return nil
	}
	return json.Unmarshal(f.Params, target)
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

func (e ErrorShape) Error() string { return e.Code + ": " + e.Message }

// ConnectParams is the body of the client's "connect" request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// accepts reports whether the client's protocol range includes v. Zero
// bounds are open.
func (p ConnectParams) accepts(v int) bool {
	if p.MinProtocol != 0 && p.MinProtocol > v {
		return false
	}
	return p.MaxProtocol == 0 || p.MaxProtocol >= v
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// name is what chat transcripts call this client.
func (ci ClientInfo) name() string {
	if ci.DisplayName != "" {
		return ci.DisplayName
	}
	return ci.ID
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

// ServerInfo identifies the gateway build and the connection.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and events this gateway offers.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy reports limits the client should respect. MaxRounds is the
// default tool round limit chat.send applies when a request omits one.
type ServerPolicy struct {
	MaxPayload       int `json:"maxPayload"`
	MaxBufferedBytes int `json:"maxBufferedBytes"`
	MaxRounds        int `json:"maxRounds"`
}

func encodeBody(kind string, v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", kind, err)
	}
	return raw, nil
}

// NewRequest builds a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encodeBody(FrameTypeRequest, params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse builds a successful response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encodeBody(FrameTypeResponse, payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse builds a failed response frame.
func NewErrorResponse(id string, shape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &shape}
}

// NewEvent builds an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encodeBody(FrameTypeEvent, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, nil
}
