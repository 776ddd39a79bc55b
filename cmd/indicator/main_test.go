package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/indicator-core/internal/auth"
	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
	"github.com/nerrad567/indicator-core/internal/infrastructure/logging"
	"github.com/nerrad567/indicator-core/internal/infrastructure/mqtt"
)

const testJWTSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a config file and points INDICATOR_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("INDICATOR_CONFIG", path)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// ====================================================================
// run
// ====================================================================

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("INDICATOR_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, `
database:
  enabled: true
  path: ""
mqtt:
  enabled: false
api:
  enabled: false
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestRun_OfflineStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "indicator.db")
	writeConfig(t, `
database:
  enabled: true
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
api:
  enabled: false
simulator:
  enabled: true
  interval: 1
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestRun_ServesAPI(t *testing.T) {
	port := freePort(t)
	writeConfig(t, fmt.Sprintf(`
database:
  enabled: false
mqtt:
  enabled: false
api:
  enabled: true
  host: "127.0.0.1"
  port: %d
security:
  jwt:
    secret: "%s"
logging:
  level: error
  output: stderr
`, port, testJWTSecret))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API did not become healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// ====================================================================
// loadConfig
// ====================================================================

func TestHealthCheck_MQTTDownOnlyWarns(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)

	if err := healthCheck(context.Background(), nil, &mqtt.Client{}, nil, log); err != nil {
		t.Fatalf("healthCheck() error = %v, want nil with broker down", err)
	}
	if !strings.Contains(buf.String(), "MQTT not connected") {
		t.Errorf("log = %q, want MQTT warning", buf.String())
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("INDICATOR_CONFIG", "")
	t.Setenv("INDICATOR_JWT_SECRET", testJWTSecret)
	t.Chdir(t.TempDir())

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != "(built-in defaults)" {
		t.Errorf("path = %q, want built-in defaults", path)
	}
	if cfg.Device.ID != "sensecap-indicator-d1" {
		t.Errorf("Device.ID = %q", cfg.Device.ID)
	}
}

// ====================================================================
// Subcommands
// ====================================================================

func TestRunCommand_HashPassword(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr bool
	}{
		{"from stdin", []string{"hash-password"}, "correct-horse\n", false},
		{"from argument", []string{"hash-password", "correct-horse"}, "", false},
		{"empty stdin", []string{"hash-password"}, "", true},
		{"too short", []string{"hash-password", "short"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runCommand(context.Background(), tt.args, strings.NewReader(tt.stdin), &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			ok, err := auth.VerifyPassword("correct-horse", strings.TrimSpace(out.String()))
			if err != nil || !ok {
				t.Errorf("VerifyPassword() = %v, %v; want true", ok, err)
			}
		})
	}
}

func TestRunCommand_PanelToken(t *testing.T) {
	writeConfig(t, `
api:
  enabled: false
security:
  jwt:
    secret: "`+testJWTSecret+`"
    panel_token_ttl: 60
`)

	var out bytes.Buffer
	if err := runCommand(context.Background(), []string{"panel-token", "hall"}, nil, &out); err != nil {
		t.Fatalf("runCommand() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Role != auth.RolePanel {
		t.Errorf("role = %q, want panel", claims.Role)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 50*time.Minute {
		t.Errorf("token expires in %v, want about an hour", ttl)
	}

	if err := runCommand(context.Background(), []string{"panel-token"}, nil, &out); err == nil {
		t.Error("panel-token without id should fail")
	}
}

func TestRunCommand_Other(t *testing.T) {
	var out bytes.Buffer
	if err := runCommand(context.Background(), []string{"version"}, nil, &out); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("version output = %q", out.String())
	}

	if err := runCommand(context.Background(), []string{"reboot"}, nil, &out); err == nil {
		t.Error("unknown command should fail")
	}
}
