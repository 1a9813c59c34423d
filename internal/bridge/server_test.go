package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/kmap/internal/config"
	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
)

func testSettings(maxBody int64) Settings {
	return Settings{
		Enabled:         true,
		Host:            "127.0.0.1",
		PhaseBodyBytes:  maxBody,
		SignalBodyBytes: maxBody,
		Timeouts:        Timeouts{Read: time.Second, Write: time.Second, Idle: time.Second},
	}
}

func startServer(t *testing.T, settings Settings, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(settings, opts...)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return srv
}

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("KMAP_BRIDGE_PORT", "9001")
	t.Setenv("KMAP_BRIDGE_HOST", "::1")
	settings, err := SettingsFromConfig(config.Default(t.TempDir()))
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	if settings.Port != 9001 || settings.Host != "::1" || !settings.Enabled {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.URL() != "http://[::1]:9001" {
		t.Fatalf("URL() = %s", settings.URL())
	}
}

func TestSettingsFromConfigUsesProjectValues(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Project.Bridge = config.BridgeConfig{Host: "localhost", Port: 9100}
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	if !settings.Enabled || settings.Host != "localhost" || settings.Port != 9100 {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.PhaseBodyBytes != DefaultPhaseBodyBytes || settings.SignalBodyBytes != DefaultSignalBodyBytes {
		t.Fatalf("body limits = %d/%d", settings.PhaseBodyBytes, settings.SignalBodyBytes)
	}
}

func TestSettingsRejectNonLoopbackHost(t *testing.T) {
	for _, host := range []string{"0.0.0.0", "192.168.1.20", "example.com", "::"} {
		cfg := config.Default(t.TempDir())
		cfg.Project.Bridge.Host = host
		if _, err := SettingsFromConfig(cfg); !errors.Is(err, ErrNotLoopback) {
			t.Fatalf("host %q: err = %v, want ErrNotLoopback", host, err)
		}
	}
	t.Setenv("KMAP_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("KMAP_BRIDGE_ENABLED", "false")
	settings, err := SettingsFromConfig(config.Default(t.TempDir()))
	if err != nil || settings.Enabled {
		t.Fatalf("disabled bridge should skip the host check, settings=%+v err=%v", settings, err)
	}
}

func TestSettingsRejectMalformedEnv(t *testing.T) {
	t.Setenv("KMAP_BRIDGE_PORT", "eighty")
	if _, err := SettingsFromConfig(config.Default(t.TempDir())); err == nil {
		t.Fatalf("expected an error for a malformed port")
	}
}

func TestServerRefusesNonLoopbackSettings(t *testing.T) {
	settings := testSettings(1024)
	settings.Host = "0.0.0.0"
	if err := NewServer(settings).Start(context.Background()); !errors.Is(err, ErrNotLoopback) {
		t.Fatalf("Start err = %v, want ErrNotLoopback", err)
	}
}

func TestServerDisabled(t *testing.T) {
	srv := NewServer(Settings{Enabled: false})
	if err := srv.Start(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Start err = %v, want ErrDisabled", err)
	}
}

func TestServerAcceptsPhase(t *testing.T) {
	t.Parallel()
	recorded := make(chan scene.Phase, 1)
	srv := startServer(t, testSettings(1024), WithProcessor(Funcs{
		Phase: func(p scene.Phase) error {
			recorded <- p
			return nil
		},
	}))
	client := NewClient(srv.BaseURL())
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	if err := client.SetPhase(context.Background(), "Publishing-V1"); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	select {
	case got := <-recorded:
		if got != scene.PhasePublishingV1 {
			t.Fatalf("phase = %s, want publishing_v1", got)
		}
	default:
		t.Fatalf("phase not forwarded to processor")
	}
	err = client.SetPhase(context.Background(), "shipping")
	if err == nil || !strings.Contains(err.Error(), "unknown phase") {
		t.Fatalf("unknown phase err = %v", err)
	}
}

func TestServerForwardsSignals(t *testing.T) {
	t.Parallel()
	recorded := make(chan signal.Signal, 1)
	srv := startServer(t, testSettings(1024), WithProcessor(Funcs{
		Signal: func(sig signal.Signal) error {
			recorded <- sig
			return nil
		},
	}))
	client := NewClient(srv.BaseURL())
	if err := client.Emit(context.Background(), " Approve-Draft "); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got := <-recorded
	if got.Name != signal.ApproveDraft || got.Source != SourceBridge {
		t.Fatalf("signal = %+v", got)
	}
	if err := client.Emit(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty signal name")
	}
}

func TestServerReportsScene(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testSettings(1024), WithProcessor(Funcs{
		Scene: func() SceneSummary {
			return SceneSummary{Phase: "approved", Entities: 42, GateFlashing: true}
		},
	}))
	summary, err := NewClient(srv.BaseURL()).Scene(context.Background())
	if err != nil {
		t.Fatalf("Scene: %v", err)
	}
	if summary.Phase != "approved" || summary.Entities != 42 || !summary.GateFlashing {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestServerRejectsWrongMethodAndBadJSON(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testSettings(1024))
	resp, err := http.Get(srv.BaseURL() + "/phase")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != http.MethodPost {
		t.Fatalf("GET /phase = %d allow=%q", resp.StatusCode, resp.Header.Get("Allow"))
	}
	resp, err = http.Post(srv.BaseURL()+"/phase", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad JSON status = %d, want 400", resp.StatusCode)
	}
}

func TestServerEnforcesPayloadLimit(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testSettings(64))
	payload := map[string]any{
		"phase":   "idle",
		"padding": strings.Repeat("a", 512),
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.BaseURL()+"/phase", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestServerLimitsPhaseBodiesTighterThanSignals(t *testing.T) {
	t.Parallel()
	settings := testSettings(1024)
	settings.PhaseBodyBytes = 32
	srv := startServer(t, settings)
	body := `{"name":"select-ticket","id":"0123456789abcdef0123456789"}`
	resp, err := http.Post(srv.BaseURL()+"/signals", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post signal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("signal status = %d, want 202", resp.StatusCode)
	}
	resp, err = http.Post(srv.BaseURL()+"/phase", "application/json", strings.NewReader(`{"phase":"publishing_v2","note":"x"}`))
	if err != nil {
		t.Fatalf("post phase: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("phase status = %d, want 413", resp.StatusCode)
	}
}

func TestSummarizeScene(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &scene.Scene{
		Phase:            scene.PhaseProvenanceHighlight,
		Width:            640,
		Height:           480,
		Entities:         make([]scene.Entity, 3),
		PublishedVersion: 2,
		Tracked:          &scene.TrackedPoint{Version: 2},
		HighlightUntil:   now.Add(time.Second),
	}
	summary := SummarizeScene(s, now)
	if summary.Phase != "provenance_highlight" || summary.Entities != 3 || summary.TrackedVersion != 2 || !summary.Highlighting {
		t.Fatalf("summary = %+v", summary)
	}
	if SummarizeScene(nil, now).Phase != "idle" {
		t.Fatalf("nil scene should summarize as idle")
	}
}
