package frame

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol marker every frame on the wire must carry.
const Version = "2.0"

// Kind is the category assigned to one line of worker output.
type Kind int

const (
	// KindResponse is a structured frame carrying an identifier and a
	// result-or-error payload. Only Responses can satisfy a pending request.
	KindResponse Kind = iota

	// KindNotification is a structured frame with a method but no identifier:
	// an unsolicited notification from the worker. Diagnostic-equivalent;
	// delivered to an observer, never matched against pending requests.
	KindNotification

	// KindDiagnostic is free-form log output interleaved into the stream.
	KindDiagnostic

	// KindUnrecognized is a line that parsed as JSON but violates the
	// envelope contract. Retained for diagnostics, never treated as a match.
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	case KindDiagnostic:
		return "diagnostic"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classified is the result of classifying one line of output.
// Exactly one of Response/Notification is non-nil, matching Kind.
type Classified struct {
	Kind         Kind
	Raw          string
	Response     *Response
	Notification *Notification
}

// Response is a protocol frame answering a request.
//
// Success is signaled by the presence of Result; failure by a non-nil Err.
// The legacy "status" field some worker builds emit is deliberately ignored.
type Response struct {
	// ID is the canonical form of the frame's identifier, as produced by
	// CanonicalID. Matched against the pending set by string equality.
	ID string

	Result json.RawMessage
	Err    *WireError
	Raw    string
}

// IsError reports whether the worker answered with an error payload.
func (r *Response) IsError() bool {
	return r.Err != nil
}

// UnmarshalResult decodes the result payload into v.
func (r *Response) UnmarshalResult(v any) error {
	if r.Result == nil {
		return fmt.Errorf("response %s has no result", r.ID)
	}

	return json.Unmarshal(r.Result, v)
}

// WireError is the error member of a response envelope.
type WireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("worker error %d: %s", e.Code, e.Message)
}

// Notification is an unsolicited structured frame from the worker.
type Notification struct {
	Method string
	Params json.RawMessage
	Raw    string
}

// Request is the outbound envelope.
//
// Wire format, one object per line:
//
//	{"jsonrpc": "2.0", "id": 7, "method": "draw_line", "params": {...}}
type Request struct {
	Version string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// EncodeRequest marshals one request frame (without trailing newline).
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	data, err := json.Marshal(&Request{
		Version: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request %q: %w", method, err)
	}

	return data, nil
}

// notificationEnvelope is an outbound frame with no identifier.
type notificationEnvelope struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// EncodeNotification marshals one id-less notification frame.
func EncodeNotification(method string, params any) ([]byte, error) {
	data, err := json.Marshal(&notificationEnvelope{
		Version: Version,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification %q: %w", method, err)
	}

	return data, nil
}
