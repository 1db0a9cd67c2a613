// Package testutil provides shared test utilities for the debug HTTP routes.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// LoopbackAddr is the remote address tsweb accepts for /debug/ routes.
const LoopbackAddr = "127.0.0.1:12345"

// LocalHostRequest creates a request from a loopback address, which
// tsweb.AllowDebugAccess requires.
func LocalHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = LoopbackAddr
	return req
}

// PostForm creates a loopback form POST.
func PostForm(path string, form url.Values) *http.Request {
	req := LocalHostRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
