package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/auth"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/logging"
)

const testSecret = "test-secret-for-development-only-0123456789"

const testSeed = `
tracks:
  - {id: 1, name: Platform 1, length: 1200}
  - {id: 2, name: Platform 2}
devices:
  - {id: 5, name: W5, kind: switch, control: 1, protocol: dcc, address: 5}
feedbacks:
  - {id: 21, name: S21, control: 1, pin: 21}
  - {id: 22, name: S22, control: 1, pin: 22}
streets:
  - id: 10
    from: 1
    from_direction: right
    to: 2
    to_direction: left
    relations:
      - {device: 5, state: on, hard: true}
    triggers: {reduced: 21, stop: 22}
locos:
  - id: 3
    name: BR 218
    binding: {control: 1, protocol: dcc, address: 3}
    track: 1
`

// testEnv is a config file plus the paths it refers to.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
	seedPath   string
	port       int
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "railcontrol.db"),
		seedPath:   filepath.Join(dir, "layout.yaml"),
		port:       freePort(t),
	}

	if err := os.WriteFile(env.seedPath, []byte(testSeed), 0600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	cfg := fmt.Sprintf(`
site:
  id: test-site

database:
  path: %q

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: %d

automode:
  tick_interval_ms: 20
  stop_timeout: 1s

hardware:
  controls:
    - {id: 1, name: bench, type: virtual}

storage:
  layout_file: %q

security:
  jwt:
    secret: %q
`, env.dbPath, env.port, env.seedPath, testSecret)
	if err := os.WriteFile(env.configPath, []byte(cfg), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return env
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

// execCmd runs the root command with args and returns its output.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// ─── Commands ───────────────────────────────────────────────────────

func TestVersionCmd(t *testing.T) {
	out, err := execCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "railcontrol dev") {
		t.Errorf("expected output to contain 'railcontrol dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: unknown") {
		t.Errorf("expected output to contain 'commit: unknown', got: %s", out)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	out, err := execCmd(t, "--help")
	if err != nil {
		t.Fatalf("root --help failed: %v", err)
	}
	for _, sub := range []string{"serve", "migrate", "layout", "hash-password", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("root help should list %q", sub)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("RAILCONTROL_CONFIG", "")
		f := &globalFlags{}
		if got := f.getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("RAILCONTROL_CONFIG", "/custom/path/config.yaml")
		f := &globalFlags{}
		if got := f.getConfigPath(); got != "/custom/path/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("RAILCONTROL_CONFIG", "/custom/path/config.yaml")
		f := &globalFlags{configPath: "/flag/config.yaml"}
		if got := f.getConfigPath(); got != "/flag/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})
}

func TestEnvFile(t *testing.T) {
	const key = "RAILCONTROL_TEST_ENV_FILE_MARKER"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := execCmd(t, "--env-file", path, "version"); err != nil {
		t.Fatalf("version with --env-file failed: %v", err)
	}
	if got := os.Getenv(key); got != "loaded" {
		t.Errorf("%s = %q, want %q", key, got, "loaded")
	}
}

func TestEnvFile_Missing(t *testing.T) {
	_, err := execCmd(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "version")
	if err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestHashPasswordCmd(t *testing.T) {
	t.Run("argument", func(t *testing.T) {
		out, err := execCmd(t, "hash-password", "s3cret")
		if err != nil {
			t.Fatalf("hash-password failed: %v", err)
		}
		hash := strings.TrimSpace(out)
		ok, err := auth.VerifyPassword("s3cret", hash)
		if err != nil || !ok {
			t.Errorf("VerifyPassword(%q) = %v, %v", hash, ok, err)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		cmd := newRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetIn(strings.NewReader("from-stdin\r\n"))
		cmd.SetArgs([]string{"hash-password"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("hash-password failed: %v", err)
		}
		ok, err := auth.VerifyPassword("from-stdin", strings.TrimSpace(buf.String()))
		if err != nil || !ok {
			t.Errorf("VerifyPassword() = %v, %v", ok, err)
		}
	})
}

func TestReadPassword_Empty(t *testing.T) {
	if _, err := readPassword(strings.NewReader("\n")); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := readPassword(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

// ─── Layout ─────────────────────────────────────────────────────────

func TestLayoutCheck(t *testing.T) {
	env := newTestEnv(t)

	out, err := execCmd(t, "layout", "check", env.seedPath)
	if err != nil {
		t.Fatalf("layout check failed: %v", err)
	}
	for _, want := range []string{"tracks: 2", "streets: 1", "devices: 1", "feedbacks: 2", "locos: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLayoutCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	seed := "tracks:\n  - {id: 1}\n  - {id: 1}\n"
	if err := os.WriteFile(path, []byte(seed), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := execCmd(t, "layout", "check", path); err == nil {
		t.Error("expected error for duplicate track")
	}
}

func TestLayoutImport(t *testing.T) {
	env := newTestEnv(t)

	out, err := execCmd(t, "--config", env.configPath, "layout", "import", env.seedPath)
	if err != nil {
		t.Fatalf("layout import failed: %v", err)
	}
	if !strings.Contains(out, "tracks: 2") || !strings.Contains(out, "locos: 1") {
		t.Errorf("unexpected summary: %s", out)
	}

	// A second import collides with the stored IDs.
	if _, err := execCmd(t, "--config", env.configPath, "layout", "import", env.seedPath); err == nil {
		t.Error("second import should fail on duplicate IDs")
	}
}

// ─── Migrate ────────────────────────────────────────────────────────

func TestMigrateUpAndStatus(t *testing.T) {
	env := newTestEnv(t)

	out, err := execCmd(t, "--config", env.configPath, "migrate", "up")
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if !strings.Contains(out, "migrations applied") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execCmd(t, "--config", env.configPath, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if !strings.Contains(out, "0 pending") {
		t.Errorf("expected no pending migrations, got: %s", out)
	}
}

func TestMigrate_InvalidConfig(t *testing.T) {
	if _, err := execCmd(t, "--config", "/nonexistent/config.yaml", "migrate", "status"); err == nil {
		t.Error("expected error for missing config")
	}
}

// ─── Wiring ─────────────────────────────────────────────────────────

func TestBuildHardware(t *testing.T) {
	log := logging.Default()

	hw, err := buildHardware(config.HardwareConfig{Controls: []config.ControlConfig{
		{ID: 1, Name: "bench", Type: "virtual"},
		{ID: 2, Name: "yard", Type: "virtual", PulseMS: 150},
	}}, nil, log)
	if err != nil {
		t.Fatalf("buildHardware() error = %v", err)
	}
	defer hw.Close()

	controls := hw.Controls()
	if len(controls) != 2 {
		t.Fatalf("Controls() = %d, want 2", len(controls))
	}
	if controls[1].PulseMS != 150 {
		t.Errorf("control 2 pulse = %d, want 150", controls[1].PulseMS)
	}

	_, err = buildHardware(config.HardwareConfig{Controls: []config.ControlConfig{
		{ID: 1, Type: "mqtt"},
	}}, nil, log)
	if err == nil {
		t.Error("mqtt control without a client should fail")
	}
}

func TestUsesMQTT(t *testing.T) {
	if usesMQTT(config.HardwareConfig{Controls: []config.ControlConfig{{Type: "virtual"}}}) {
		t.Error("virtual-only hardware reported as mqtt")
	}
	if !usesMQTT(config.HardwareConfig{Controls: []config.ControlConfig{{Type: "virtual"}, {Type: "mqtt"}}}) {
		t.Error("mqtt control not detected")
	}
}

func TestBuildDirectory(t *testing.T) {
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}

	dir, err := buildDirectory([]config.UserConfig{
		{Username: "driver", PasswordHash: hash, Role: "operator"},
		{Username: "visitor", PasswordHash: hash, Role: "observer"},
	})
	if err != nil {
		t.Fatalf("buildDirectory() error = %v", err)
	}
	if dir.Len() != 2 {
		t.Errorf("Len() = %d, want 2", dir.Len())
	}

	_, err = buildDirectory([]config.UserConfig{{Username: "x", PasswordHash: hash, Role: "admin"}})
	if !errors.Is(err, auth.ErrInvalidRole) {
		t.Errorf("buildDirectory() error = %v, want ErrInvalidRole", err)
	}
}

func TestHealthCheck_Disabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() with nothing enabled = %v", err)
	}
}

// ─── Run ────────────────────────────────────────────────────────────

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml", serveOptions{}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// startRun runs the daemon in the background until the health endpoint
// answers and returns a function that stops it and reports run's error.
func startRun(t *testing.T, env testEnv, opts serveOptions) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, env.configPath, opts)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", env.port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:noctx // test helper
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		select {
		case err := <-done:
			cancel()
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("API did not become healthy")
		}
		time.Sleep(20 * time.Millisecond)
	}

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(15 * time.Second):
			t.Fatal("run() did not return after cancel")
			return nil
		}
	}
}

func TestRun_EphemeralStartupAndShutdown(t *testing.T) {
	env := newTestEnv(t)

	stop := startRun(t, env, serveOptions{ephemeral: true})
	if err := stop(); err != nil {
		t.Errorf("run() error = %v", err)
	}

	if _, err := os.Stat(env.dbPath); !os.IsNotExist(err) {
		t.Errorf("ephemeral run created %s", env.dbPath)
	}
}

func TestRun_PersistsImportedLayout(t *testing.T) {
	env := newTestEnv(t)

	stop := startRun(t, env, serveOptions{})
	if err := stop(); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	// The seed went into the database, so a second import collides.
	if _, err := execCmd(t, "--config", env.configPath, "layout", "import", env.seedPath); err == nil {
		t.Error("layout from the first run was not persisted")
	}
}
