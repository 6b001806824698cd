package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/timelock/internal/model"
)

var op1 = model.OperationID("op1").Hex()

// do sends a request with an optional bearer token and JSON body.
func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

// decodeBody checks the status and decodes the JSON body into v.
func decodeBody(t *testing.T, resp *http.Response, wantStatus int, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, wantStatus, body)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, body)
	}
}

// expectError checks the status and error code of a failed call.
func expectError(t *testing.T, resp *http.Response, wantStatus int, wantCode string) {
	t.Helper()
	var body errorResponse
	decodeBody(t, resp, wantStatus, &body)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q (error %q)", body.Code, wantCode, body.Error)
	}
}

func TestOperationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t, testAdmin)

	var queued model.Operation
	decodeBody(t, do(t, "POST", ts.URL+"/v1/operations", tok, queueRequest{ID: op1, Delay: 60}), http.StatusCreated, &queued)
	if queued.ExecuteAt != 1060 || queued.State != model.StatePending || queued.ID != op1 {
		t.Errorf("queued = %+v, want pending at 1060", queued)
	}

	var got model.Operation
	decodeBody(t, do(t, "GET", ts.URL+"/v1/operations/"+op1, "", nil), http.StatusOK, &got)
	if got.State != model.StatePending {
		t.Errorf("state = %q, want pending", got.State)
	}

	expectError(t, do(t, "POST", ts.URL+"/v1/operations/"+op1+"/execute", tok, nil), http.StatusTooEarly, "too_early")

	if err := env.clock.Set(1061); err != nil {
		t.Fatalf("Set: %v", err)
	}
	decodeBody(t, do(t, "GET", ts.URL+"/v1/operations/"+op1, "", nil), http.StatusOK, &got)
	if got.State != model.StateReady {
		t.Errorf("state = %q, want ready", got.State)
	}

	var executed executeResponse
	decodeBody(t, do(t, "POST", ts.URL+"/v1/operations/"+op1+"/execute", tok, nil), http.StatusOK, &executed)
	if executed.ExecutedAt != 1061 {
		t.Errorf("executed_at = %d, want 1061", executed.ExecutedAt)
	}

	decodeBody(t, do(t, "GET", ts.URL+"/v1/operations/"+op1, "", nil), http.StatusOK, &got)
	if got.State != model.StateUnknown || got.ExecuteAt != 0 {
		t.Errorf("after execute = %+v, want unknown", got)
	}

	expectError(t, do(t, "POST", ts.URL+"/v1/operations/"+op1+"/execute", tok, nil), http.StatusNotFound, "not_found")
}

func TestQueueErrors(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t, testAdmin)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		code   string
	}{
		{"anonymous", "", queueRequest{ID: op1, Delay: 60}, http.StatusUnauthorized, "unauthorized"},
		{"wrong principal", env.token(t, "intruder"), queueRequest{ID: op1, Delay: 60}, http.StatusForbidden, "unauthorized"},
		{"delay too short", tok, queueRequest{ID: op1, Delay: 59}, http.StatusBadRequest, "delay_out_of_range"},
		{"delay too long", tok, queueRequest{ID: op1, Delay: 86401}, http.StatusBadRequest, "delay_out_of_range"},
		{"bad hex", tok, queueRequest{ID: "zz", Delay: 60}, http.StatusBadRequest, "invalid_operation_id"},
		{"empty id", tok, queueRequest{ID: "", Delay: 60}, http.StatusBadRequest, "invalid_operation_id"},
		{"bad json", tok, "not an object", http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, do(t, "POST", ts.URL+"/v1/operations", tt.token, tt.body), tt.status, tt.code)
		})
	}

	decodeBody(t, do(t, "POST", ts.URL+"/v1/operations", tok, queueRequest{ID: op1, Delay: 60}), http.StatusCreated, nil)
	expectError(t, do(t, "POST", ts.URL+"/v1/operations", tok, queueRequest{ID: op1, Delay: 60}), http.StatusConflict, "already_queued")
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp := do(t, "POST", ts.URL+"/v1/operations", "garbage", queueRequest{ID: op1, Delay: 60})
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
	expectError(t, resp, http.StatusUnauthorized, "unauthorized")
}

func TestCancelOperation(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t, testAdmin)

	expectError(t, do(t, "DELETE", ts.URL+"/v1/operations/"+op1, tok, nil), http.StatusNotFound, "not_found")

	decodeBody(t, do(t, "POST", ts.URL+"/v1/operations", tok, queueRequest{ID: op1, Delay: 60}), http.StatusCreated, nil)
	expectError(t, do(t, "DELETE", ts.URL+"/v1/operations/"+op1, "", nil), http.StatusUnauthorized, "unauthorized")

	var cancelled cancelResponse
	decodeBody(t, do(t, "DELETE", ts.URL+"/v1/operations/"+op1, tok, nil), http.StatusOK, &cancelled)
	if cancelled.State != model.StateUnknown || cancelled.ID != op1 {
		t.Errorf("cancelled = %+v", cancelled)
	}

	// Requeue after cancel.
	decodeBody(t, do(t, "POST", ts.URL+"/v1/operations", tok, queueRequest{ID: op1, Delay: 120}), http.StatusCreated, nil)
}

func TestGetOperationBadID(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	expectError(t, do(t, "GET", ts.URL+"/v1/operations/xyz", "", nil), http.StatusBadRequest, "invalid_operation_id")
}

func TestGetAdmin(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	var body adminResponse
	decodeBody(t, do(t, "GET", ts.URL+"/v1/admin", "", nil), http.StatusOK, &body)
	if body.Admin != testAdmin {
		t.Errorf("admin = %q, want %q", body.Admin, testAdmin)
	}
}
