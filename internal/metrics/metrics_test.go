package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerServesMetricsAndHealth(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	InputEvents.WithLabelValues("pointer").Inc()

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "health", path: "/health", want: "OK"},
		{name: "metrics", path: "/metrics", want: "worktime_input_events_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get("http://" + srv.Addr() + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body does not contain %q", tt.want)
			}
		})
	}
}
