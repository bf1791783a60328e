package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/inetmon/inetmon/internal/web/middleware"
)

func TestAllowHosts(t *testing.T) {
	tests := []struct {
		name       string
		hosts      []string
		remoteAddr string
		want       int
	}{
		{name: "empty list allows all", hosts: nil, remoteAddr: "203.0.113.9:5000", want: http.StatusOK},
		{name: "exact ip", hosts: []string{"192.168.1.10"}, remoteAddr: "192.168.1.10:5000", want: http.StatusOK},
		{name: "other ip", hosts: []string{"192.168.1.10"}, remoteAddr: "192.168.1.11:5000", want: http.StatusForbidden},
		{name: "cidr", hosts: []string{"10.0.0.0/8"}, remoteAddr: "10.20.30.40:1234", want: http.StatusOK},
		{name: "ipv6 loopback", hosts: []string{"::1"}, remoteAddr: "[::1]:5000", want: http.StatusOK},
		{name: "invalid entries deny", hosts: []string{"not-an-ip"}, remoteAddr: "127.0.0.1:5000", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.AllowHosts(tt.hosts, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "not allowed to access this resource")
			}
		})
	}
}

func TestAllowHosts_IgnoresForwardedFor(t *testing.T) {
	handler := middleware.AllowHosts([]string{"127.0.0.1"}, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "198.51.100.1:4000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
