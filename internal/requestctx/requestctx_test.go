package requestctx

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.True(t, RequestTime(ctx).IsZero())
	assert.Empty(t, ClientIP(ctx))

	now := time.Now()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithRequestTime(ctx, now)
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, now, RequestTime(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.NotNil(t, Logger(ctx))
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"socket address", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip wins", map[string]string{"X-Real-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:80", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, RemoteIP(r))
		})
	}
}
