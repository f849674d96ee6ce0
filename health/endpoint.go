package health

import (
	"fmt"
	"time"
)

// EndpointHealth is one probe outcome. Pointer fields are nil when the
// probe never got far enough to measure them.
type EndpointHealth struct {
	EndpointURL    string            `json:"endpoint_url"`
	Status         Status            `json:"status"`
	ResponseTimeMs *float64          `json:"response_time_ms,omitempty"`
	StatusCode     int               `json:"status_code,omitempty"`
	SSLValid       *bool             `json:"ssl_valid,omitempty"`
	SSLExpiry      *time.Time        `json:"ssl_expiry,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	ServerInfo     map[string]string `json:"server_info,omitempty"`
	Capabilities   []string          `json:"capabilities,omitempty"`
	Attempts       int               `json:"attempts"`
}

// Latency returns the response time, or zero when none was measured.
func (h EndpointHealth) Latency() time.Duration {
	if h.ResponseTimeMs == nil {
		return 0
	}
	return time.Duration(*h.ResponseTimeMs * float64(time.Millisecond))
}

// Summary is a one-line description for logs and check results.
func (h EndpointHealth) Summary() string {
	switch {
	case h.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", h.Status, h.ErrorMessage)
	case h.ResponseTimeMs != nil:
		return fmt.Sprintf("%s in %.0fms", h.Status, *h.ResponseTimeMs)
	default:
		return h.Status.String()
	}
}

func millis(d time.Duration) *float64 {
	ms := float64(d.Microseconds()) / 1000
	return &ms
}
