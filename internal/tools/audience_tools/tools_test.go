package audience_tools

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/audiencer/audiencer/internal/audience"
)

func newTestAudienceClient(t *testing.T) *audience.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client, err := audience.NewClient(audience.Config{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		RetryInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestGetStringArg(t *testing.T) {
	args := map[string]interface{}{
		"present": "value",
		"number":  42,
	}

	if got := getStringArg(args, "present"); got != "value" {
		t.Errorf("getStringArg(present) = %q, want value", got)
	}
	if got := getStringArg(args, "absent"); got != "" {
		t.Errorf("getStringArg(absent) = %q, want empty", got)
	}
	if got := getStringArg(args, "number"); got != "" {
		t.Errorf("getStringArg(number) = %q, want empty for non-string", got)
	}
}

func TestGetPageArg(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want int
	}{
		{"absent", map[string]interface{}{}, 0},
		{"valid page", map[string]interface{}{"page": float64(3)}, 3},
		{"zero page", map[string]interface{}{"page": float64(0)}, 0},
		{"negative page", map[string]interface{}{"page": float64(-1)}, 0},
		{"non-number", map[string]interface{}{"page": "2"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getPageArg(tt.args); got != tt.want {
				t.Errorf("getPageArg() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetFieldsArg(t *testing.T) {
	args := map[string]interface{}{
		"fields": map[string]interface{}{
			"plan":  "pro",
			"count": 7, // non-string values are dropped
		},
	}

	fields := getFieldsArg(args)
	if len(fields) != 1 || fields["plan"] != "pro" {
		t.Errorf("getFieldsArg() = %v, want map[plan:pro]", fields)
	}

	if got := getFieldsArg(map[string]interface{}{}); got != nil {
		t.Errorf("getFieldsArg() = %v for absent fields, want nil", got)
	}
}

func TestRegisterAudienceTools(t *testing.T) {
	client := newTestAudienceClient(t)

	s := mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithToolCapabilities(true))
	if err := RegisterAudienceTools(s, client, false, nil); err != nil {
		t.Fatalf("RegisterAudienceTools() error = %v", err)
	}
}

func TestRegisterAudienceTools_ReadOnly(t *testing.T) {
	client := newTestAudienceClient(t)

	s := mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithToolCapabilities(true))
	if err := RegisterAudienceTools(s, client, true, nil); err != nil {
		t.Fatalf("RegisterAudienceTools() error = %v", err)
	}
}

func TestRegisterAudienceTools_NilClient(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithToolCapabilities(true))
	if err := RegisterAudienceTools(s, nil, false, nil); err == nil {
		t.Error("RegisterAudienceTools(nil client) error = nil, want error")
	}
}
