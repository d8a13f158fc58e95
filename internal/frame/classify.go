package frame

import (
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the inbound wire shape. ID is kept raw because the worker may
// echo numeric or string identifiers.
type envelope struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *WireError      `json:"error"`
	Params  json.RawMessage `json:"params"`
}

// Classify assigns exactly one category to a line of worker stdout.
//
// Precedence, total and deterministic:
//  1. A line that parses as a JSON object carrying the protocol marker
//     (jsonrpc == "2.0") is a candidate frame.
//  2. A candidate with an identifier is a Response.
//  3. A candidate with no identifier but a method is a Notification
//     (diagnostic-equivalent, never satisfies a pending request).
//  4. A candidate with neither, or a JSON value without the marker, is
//     Unrecognized: observable for diagnostics, never a match, never fatal.
//  5. Everything else, including the worker's timestamp-prefixed log lines,
//     is Diagnostic.
//
// Whether a Response actually matches a pending request is the correlator's
// decision; the classifier only establishes the frame's shape.
func Classify(line string) Classified {
	trimmed := strings.TrimSpace(line)

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Classified{Kind: KindDiagnostic, Raw: line}
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		// Looks like JSON but is not; the worker interleaves partial dumps
		// and brace-heavy log lines, so this stays a Diagnostic.
		return Classified{Kind: KindDiagnostic, Raw: line}
	}

	if env.Version != Version {
		return Classified{Kind: KindUnrecognized, Raw: line}
	}

	if id, ok := CanonicalID(env.ID); ok {
		return Classified{
			Kind: KindResponse,
			Raw:  line,
			Response: &Response{
				ID:     id,
				Result: env.Result,
				Err:    env.Error,
				Raw:    line,
			},
		}
	}

	if env.Method != "" {
		return Classified{
			Kind: KindNotification,
			Raw:  line,
			Notification: &Notification{
				Method: env.Method,
				Params: env.Params,
				Raw:    line,
			},
		}
	}

	return Classified{Kind: KindUnrecognized, Raw: line}
}

// CanonicalID normalizes a raw identifier token to the string form used as
// the pending-set key. Numeric identifiers keep their literal form ("7");
// string identifiers are unquoted. Absent or null identifiers report false.
func CanonicalID(raw json.RawMessage) (string, bool) {
	token := strings.TrimSpace(string(raw))
	if token == "" || token == "null" {
		return "", false
	}

	if token[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}

		return s, true
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}

	return n.String(), true
}

// FormatID is the canonical form of a caller-assigned numeric identifier.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
