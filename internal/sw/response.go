package sw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

const (
	// SyncStatusHeader carries the status text of synthetic offline responses.
	SyncStatusHeader = "X-Sync-Status"
	// UpdatePending is the status text of a mutation queued for replay.
	UpdatePending = "UpdatePending"
)

func newResponse(req *http.Request, status int, statusText string, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, statusText),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func jsonResponse(req *http.Request, status int, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return newResponse(req, status, http.StatusText(status), header, body), nil
}

// pendingResponse answers a mutation that was queued instead of sent.
func pendingResponse(req *http.Request, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set(SyncStatusHeader, UpdatePending)
	return newResponse(req, http.StatusCreated, UpdatePending, header, body), nil
}

func errorResponse(req *http.Request, status int, msg string) (*http.Response, error) {
	return jsonResponse(req, status, map[string]string{"error": msg})
}

func methodNotAllowed(req *http.Request, allowed ...string) (*http.Response, error) {
	resp, err := errorResponse(req, http.StatusMethodNotAllowed, "method "+req.Method+" not allowed")
	if err != nil {
		return nil, err
	}
	for _, m := range allowed {
		resp.Header.Add("Allow", m)
	}
	return resp, nil
}
