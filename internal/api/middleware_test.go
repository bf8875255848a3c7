package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware_KeepsHijacker(t *testing.T) {
	srv, _ := testServer(t)

	hijackable := make(chan bool, 1)
	h := srv.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, ok := w.(http.Hijacker)
		hijackable <- ok
		w.WriteHeader(http.StatusTeapot)
	}))

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close() //nolint:errcheck // test cleanup

	if !<-hijackable {
		t.Error("wrapped ResponseWriter does not implement http.Hijacker")
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}
