package broker

import (
	"testing"
)

func TestParseEnvelope_Non2xx_ReturnsUpstreamError(t *testing.T) {
	_, err := parseEnvelope(500, []byte(`{"status":"error","message":"internal failure"}`))
	var upErr *UpstreamError
	if !asError(err, &upErr) {
		t.Fatalf("parseEnvelope() error = %v, want UpstreamError", err)
	}
	if upErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", upErr.StatusCode)
	}
	if upErr.Msg != "internal failure" {
		t.Errorf("Msg = %q, want upstream message", upErr.Msg)
	}
}

func TestParseEnvelope_Non2xxUnparseableBody_FallsBackToHTTPStatus(t *testing.T) {
	_, err := parseEnvelope(502, []byte(`<html>bad gateway</html>`))
	var upErr *UpstreamError
	if !asError(err, &upErr) {
		t.Fatalf("parseEnvelope() error = %v, want UpstreamError", err)
	}
	if upErr.Msg != "HTTP 502" {
		t.Errorf("Msg = %q, want %q", upErr.Msg, "HTTP 502")
	}
}

func TestParseEnvelope_2xxUnparseableBody_ReturnsProtocolError(t *testing.T) {
	_, err := parseEnvelope(200, []byte(`not json at all`))
	var protoErr *ProtocolError
	if !asError(err, &protoErr) {
		t.Fatalf("parseEnvelope() error = %v, want ProtocolError", err)
	}
}

func TestEnvelope_AuthToken_FieldPriority(t *testing.T) {
	testCases := []struct {
		name string
		env  envelope
		want string
	}{
		{"canonical field", envelope{"AuthToken": "t1"}, "t1"},
		{"lowercase variant", envelope{"authToken": "t2"}, "t2"},
		{"bare token", envelope{"token": "t3"}, "t3"},
		{"oauth style", envelope{"access_token": "t4"}, "t4"},
		{"priority order", envelope{"token": "low", "AuthToken": "high"}, "high"},
		{"skips empty preferred field", envelope{"AuthToken": "", "token": "t5"}, "t5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.env.authToken()
			if err != nil {
				t.Fatalf("authToken() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("authToken() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEnvelope_AuthToken_Missing_ReturnsProtocolError(t *testing.T) {
	_, err := envelope{"status": "success"}.authToken()
	var protoErr *ProtocolError
	if !asError(err, &protoErr) {
		t.Errorf("authToken() error = %v, want ProtocolError", err)
	}
}

func TestEnvelope_OrderID_DataLevelBeforeTopLevel(t *testing.T) {
	env := envelope{
		"orderid": "top",
		"data":    map[string]any{"uniqueorderid": "nested"},
	}
	got, err := env.orderID()
	if err != nil {
		t.Fatalf("orderID() error = %v", err)
	}
	if got != "nested" {
		t.Errorf("orderID() = %q, want nested id first", got)
	}
}

func TestEnvelope_OrderID_NumericID_Stringified(t *testing.T) {
	env := envelope{"data": map[string]any{"orderid": float64(123456789)}}
	got, err := env.orderID()
	if err != nil {
		t.Fatalf("orderID() error = %v", err)
	}
	if got != "123456789" {
		t.Errorf("orderID() = %q, want %q", got, "123456789")
	}
}

func TestEnvelope_OrderID_Missing_ReturnsProtocolError(t *testing.T) {
	_, err := envelope{"data": map[string]any{"foo": "bar"}}.orderID()
	var protoErr *ProtocolError
	if !asError(err, &protoErr) {
		t.Errorf("orderID() error = %v, want ProtocolError", err)
	}
}

func TestEnvelope_OperationSuccess_Heuristics(t *testing.T) {
	testCases := []struct {
		name string
		env  envelope
		want bool
	}{
		{"explicit status", envelope{"status": "success"}, true},
		{"keyword success", envelope{"message": "Order cancellation Successful"}, true},
		{"keyword completed", envelope{"message": "request completed"}, true},
		{"keyword done", envelope{"message": "all done"}, true},
		{"nested status", envelope{"data": map[string]any{"status": "success"}}, true},
		{"rejected", envelope{"status": "error", "message": "order rejected"}, false},
		{"empty envelope", envelope{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.operationSuccess(); got != tc.want {
				t.Errorf("operationSuccess() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnvelope_DataList_WrapsSingleObject(t *testing.T) {
	env := envelope{"data": map[string]any{"symbol": "RELIANCE"}}
	got := env.dataList()
	if len(got) != 1 {
		t.Fatalf("dataList() length = %d, want 1", len(got))
	}
	if got[0]["symbol"] != "RELIANCE" {
		t.Errorf("dataList()[0] = %v, want the wrapped object", got[0])
	}
}

func TestEnvelope_DataList_MissingData_ReturnsEmpty(t *testing.T) {
	if got := (envelope{"status": "success"}).dataList(); len(got) != 0 {
		t.Errorf("dataList() = %v, want empty", got)
	}
}

func TestEnvelope_DataSuccess(t *testing.T) {
	testCases := []struct {
		name string
		env  envelope
		want bool
	}{
		{"status sentinel", envelope{"status": "success"}, true},
		{"data present", envelope{"data": []any{}}, true},
		{"neither", envelope{"status": "error", "message": "nope"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.dataSuccess(); got != tc.want {
				t.Errorf("dataSuccess() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNumeric_ParsesStringsAndNumbers(t *testing.T) {
	if v, ok := numeric(float64(50)); !ok || v != 50 {
		t.Errorf("numeric(50) = (%v, %v), want (50, true)", v, ok)
	}
	if v, ok := numeric(" -30 "); !ok || v != -30 {
		t.Errorf("numeric(\" -30 \") = (%v, %v), want (-30, true)", v, ok)
	}
	if _, ok := numeric(nil); ok {
		t.Error("numeric(nil) ok = true, want false")
	}
}
