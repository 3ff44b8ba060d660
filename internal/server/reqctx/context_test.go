package reqctx

import (
	"context"
	"net/http"
	"testing"

	"github.com/maruel/ksid"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "X-Forwarded-For single IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			remoteAddr: "127.0.0.1:3368",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"},
			remoteAddr: "127.0.0.1:3368",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			remoteAddr: "127.0.0.1:3368",
			want:       "203.0.113.7",
		},
		{
			name:       "RemoteAddr with port",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
		{
			name:       "IPv6 RemoteAddr with port",
			remoteAddr: "[::1]:3368",
			want:       "::1",
		},
		{
			name:       "IPv6 RemoteAddr without port",
			remoteAddr: "[::1]",
			want:       "::1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Header: http.Header{}, RemoteAddr: tt.remoteAddr}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if ClientIP(ctx) != "" || RequestID(ctx) != 0 {
		t.Fatal("empty context should carry no values")
	}
	id := ksid.NewID()
	ctx = WithRequestID(WithClientIP(ctx, "10.0.0.1"), id)
	if got := ClientIP(ctx); got != "10.0.0.1" {
		t.Errorf("ClientIP() = %q", got)
	}
	if got := RequestID(ctx); got != id {
		t.Errorf("RequestID() = %v, want %v", got, id)
	}
}
