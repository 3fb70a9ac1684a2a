package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/results/job-123", "/api/results/:id"},
		{"/api/functions/WEATHER_V1", "/api/functions/:id"},
		{"/api/functions", "/api/functions"},
		{"/api/jobs", "/api/jobs"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), tt.in)
	}
}
