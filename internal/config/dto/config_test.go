package dto

import (
	"testing"
	"time"
)

func TestDurations(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"flush period", FlushConfig{PeriodMS: 250}.Period(), 250 * time.Millisecond},
		{"initial backoff", IngestConfig{InitialBackoffMS: 10}.InitialBackoff(), 10 * time.Millisecond},
		{"max backoff", IngestConfig{MaxBackoffMS: 1500}.MaxBackoff(), 1500 * time.Millisecond},
		{"grace period", ShutdownConfig{GracePeriodSeconds: 30}.GracePeriod(), 30 * time.Second},
		{"drain timeout", ShutdownConfig{DrainTimeoutSeconds: 60}.DrainTimeout(), time.Minute},
		{"zero", FlushConfig{}.Period(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
