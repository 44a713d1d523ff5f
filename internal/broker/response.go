package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The upstream envelope is nominally {status, message, data}, but field
// presence is inconsistent across endpoints. All response sniffing lives
// here so the heuristics stay centralized and testable.

type envelope map[string]any

// parseEnvelope decodes a response body. statusCode is consulted first:
// non-2xx responses become UpstreamError carrying the upstream message
// when one can be parsed out of the body.
func parseEnvelope(statusCode int, body []byte) (envelope, error) {
	if statusCode < 200 || statusCode > 299 {
		msg := fmt.Sprintf("HTTP %d", statusCode)
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil {
			if m := env.message(); m != "" {
				msg = m
			}
		}
		return nil, &UpstreamError{StatusCode: statusCode, Msg: msg}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ProtocolError{Msg: fmt.Sprintf("unparseable body: %v", err)}
	}
	return env, nil
}

// message returns the top-level message field, if any.
func (e envelope) message() string {
	if m, ok := e["message"].(string); ok {
		return m
	}
	return ""
}

// statusSuccess reports whether the top-level status equals the success
// sentinel. Upstream responses mix "success" and "SUCCESS".
func (e envelope) statusSuccess() bool {
	s, ok := e["status"].(string)
	return ok && strings.EqualFold(s, "success")
}

// authTokenFields is the fixed priority order of known token field names.
var authTokenFields = []string{"AuthToken", "authToken", "token", "access_token"}

// authToken extracts the session token from an authentication response.
func (e envelope) authToken() (string, error) {
	for _, field := range authTokenFields {
		if v, ok := e[field]; ok {
			if s := stringify(v); s != "" {
				return s, nil
			}
		}
	}
	return "", &ProtocolError{Msg: "auth token not found in response"}
}

// authSuccess reports whether an authentication response indicates success:
// either the status sentinel or the presence of a token field.
func (e envelope) authSuccess() bool {
	if e.statusSuccess() {
		return true
	}
	_, err := e.authToken()
	return err == nil
}

// dataSuccess reports whether a data-endpoint response indicates success:
// the status sentinel, or a data section being present at all.
func (e envelope) dataSuccess() bool {
	if e.statusSuccess() {
		return true
	}
	_, ok := e["data"]
	return ok
}

// orderIDFields is the fixed priority order of known order id field names.
var orderIDFields = []string{"uniqueorderid", "orderid", "order_id", "orderId"}

// orderID extracts the broker order id, checking the nested data section
// before the top level.
func (e envelope) orderID() (string, error) {
	if data, ok := e["data"].(map[string]any); ok {
		for _, field := range orderIDFields {
			if v, ok := data[field]; ok {
				if s := stringify(v); s != "" {
					return s, nil
				}
			}
		}
	}
	for _, field := range orderIDFields {
		if v, ok := e[field]; ok {
			if s := stringify(v); s != "" {
				return s, nil
			}
		}
	}
	return "", &ProtocolError{Msg: "order id not found in response"}
}

// successKeywords are the message substrings the upstream is known to use
// for successful modify/cancel operations.
var successKeywords = []string{"success", "successful", "completed", "done"}

// operationSuccess applies the modify/cancel success heuristic: explicit
// success status, a success keyword in the message, or a nested success
// status. This mirrors the upstream's actual behavior, which has no strict
// contract for these endpoints.
func (e envelope) operationSuccess() bool {
	if e.statusSuccess() {
		return true
	}

	msg := strings.ToLower(e.message())
	for _, kw := range successKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}

	if data, ok := e["data"].(map[string]any); ok {
		if s, ok := data["status"].(string); ok && s == "success" {
			return true
		}
	}
	return false
}

// dataList returns the data section as a list of objects, wrapping a
// single object and tolerating an absent section.
func (e envelope) dataList() []map[string]any {
	switch data := e["data"].(type) {
	case []any:
		out := make([]map[string]any, 0, len(data))
		for _, item := range data {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{data}
	default:
		return []map[string]any{}
	}
}

// dataObject returns the data section as an object, or an empty map when
// it is absent or not an object.
func (e envelope) dataObject() map[string]any {
	if m, ok := e["data"].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// stringify renders a JSON scalar as a string. Numeric ids arrive as
// either strings or numbers depending on the endpoint.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// numeric parses a JSON value that may be a number or a numeric string.
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// firstString returns the first non-empty string among the named fields.
func firstString(m map[string]any, fields ...string) string {
	for _, f := range fields {
		if v, ok := m[f]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}
