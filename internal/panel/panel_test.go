package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_Embedded(t *testing.T) {
	handler := Handler("")

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "<!DOCTYPE html>"},
		{"/panel.js", "ws-ticket"},
		{"/panel.css", ".switch"},
		{"/manifest.json", `"start_url"`},
		{"/some/deep/route", "<!DOCTYPE html>"},
		{"/nonexistent", "<!DOCTYPE html>"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, handler, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: got status %d, want 200", tt.path, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("GET %s: body does not contain %q", tt.path, tt.contains)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
				t.Errorf("Cache-Control = %q", got)
			}
		})
	}
}

func TestHandler_WidgetIDs(t *testing.T) {
	body := get(t, Handler(""), "/").Body.String()
	for _, id := range []string{`id="bright_switch"`, `id="relax_switch"`, `id="water_level"`} {
		if !strings.Contains(body, id) {
			t.Errorf("index.html missing %s", id)
		}
	}
}

func TestHandler_FilesystemMode(t *testing.T) {
	dir := t.TempDir()
	indexContent := `<!DOCTYPE html><html><body>filesystem panel</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "test.js"), []byte("console.log('test')"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := Handler(dir)

	if w := get(t, handler, "/"); !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Errorf("filesystem GET /: expected filesystem content, got %q", w.Body.String())
	}
	if w := get(t, handler, "/test.js"); w.Code != http.StatusOK {
		t.Errorf("filesystem GET /test.js: got status %d, want 200", w.Code)
	}
	if w := get(t, handler, "/deep/route"); !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Error("filesystem fallback didn't serve filesystem index.html")
	}
}

func TestHandler_InvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("invalid dir: didn't fall back to embedded index.html")
	}
}
