package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, GoVersion)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BAD_BOOL", "maybe")
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_FLOAT", "0.85")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "soon")

	if got := getEnv("TEST_STR", "default"); got != "custom" {
		t.Errorf("getEnv = %q, want custom", got)
	}
	if got := getEnv("TEST_UNSET_STR", "default"); got != "default" {
		t.Errorf("getEnv(unset) = %q, want default", got)
	}
	if got := getEnvBool("TEST_BOOL", false); !got {
		t.Error("getEnvBool = false, want true")
	}
	if got := getEnvBool("TEST_BAD_BOOL", true); !got {
		t.Error("getEnvBool(invalid) = false, want default true")
	}
	if got := getEnvInt("TEST_INT", 1); got != 12 {
		t.Errorf("getEnvInt = %d, want 12", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 3); got != 3 {
		t.Errorf("getEnvInt(invalid) = %d, want 3", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 0.5); got != 0.85 {
		t.Errorf("getEnvFloat = %v, want 0.85", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_BAD_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration(invalid) = %v, want 1m", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_DIR", "/srv/catalog")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "/srv/catalog/catalog.db" {
		t.Errorf("DatabasePath = %s, want /srv/catalog/catalog.db", cfg.DatabasePath)
	}
	if cfg.ClusterThresh != 0.7 || cfg.MergeSampleCap != 1000 {
		t.Errorf("clustering defaults = %v/%d, want 0.7/1000", cfg.ClusterThresh, cfg.MergeSampleCap)
	}
	if cfg.FaceDetector != "cascade" {
		t.Errorf("FaceDetector = %s, want cascade", cfg.FaceDetector)
	}
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
database_driver: sqlite
database_path: /data/from-yaml.db
auto_scan_paths: [/photos, /videos]
scan_interval: 2h
scan_workers: 5
face_detector: model
face_model_path: /models/arcface.onnx
cluster_threshold: 0.65
ops_port: "8181"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SCAN_WORKERS", "9")
	t.Setenv("AUTO_SCAN_PATHS", " /a , ,/b ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != "/data/from-yaml.db" {
		t.Errorf("database = %s %s, want yaml values", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.ScanInterval != 2*time.Hour {
		t.Errorf("ScanInterval = %v, want 2h", cfg.ScanInterval)
	}
	if cfg.ScanWorkers != 9 {
		t.Errorf("ScanWorkers = %d, want 9 (env beats yaml)", cfg.ScanWorkers)
	}
	if strings.Join(cfg.AutoScanPaths, "|") != "/a|/b" {
		t.Errorf("AutoScanPaths = %v, want [/a /b]", cfg.AutoScanPaths)
	}
	if cfg.FaceDetector != "model" || cfg.FaceModelPath != "/models/arcface.onnx" {
		t.Errorf("detector = %s %s", cfg.FaceDetector, cfg.FaceModelPath)
	}
	if cfg.ClusterThresh != 0.65 {
		t.Errorf("ClusterThresh = %v, want 0.65", cfg.ClusterThresh)
	}
	if cfg.OpsPort != "8181" {
		t.Errorf("OpsPort = %s, want 8181", cfg.OpsPort)
	}
}

func TestLoadLegacyKeys(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SCAN_INTERVAL_MINUTES", "15")
	t.Setenv("USE_OPENCV", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScanInterval != 15*time.Minute {
		t.Errorf("ScanInterval = %v, want 15m", cfg.ScanInterval)
	}
	if cfg.FaceDetector != "native" {
		t.Errorf("FaceDetector = %s, want native", cfg.FaceDetector)
	}

	t.Setenv("SCAN_INTERVAL", "45m")
	t.Setenv("FACE_DETECTOR", "cascade")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScanInterval != 45*time.Minute || cfg.FaceDetector != "cascade" {
		t.Errorf("new keys did not win: %v %s", cfg.ScanInterval, cfg.FaceDetector)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{name: "unknown driver", env: map[string]string{"DATABASE_DRIVER": "mysql"}, field: "DatabaseDriver"},
		{name: "postgres without dsn", env: map[string]string{"DATABASE_DRIVER": "postgres"}, field: "PostgresDSN"},
		{name: "unknown detector", env: map[string]string{"FACE_DETECTOR": "magic"}, field: "FaceDetector"},
		{name: "threshold out of range", env: map[string]string{"CLUSTER_THRESHOLD": "1.5"}, field: "ClusterThresh"},
		{name: "non-numeric port", env: map[string]string{"OPS_PORT": "http"}, field: "OpsPort"},
		{name: "bad nats url", env: map[string]string{"NATS_URL": "not a url"}, field: "NATSURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil {
				t.Fatal("Load() = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing file) = nil error")
	}
}

func TestRedactedDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://user:secret@db:5432/catalog", "postgres://user:xxxxx@db:5432/catalog"},
		{"nats://localhost:4222", "nats://localhost:4222"},
	}
	for _, tt := range tests {
		if got := RedactedDSN(tt.in); got != tt.want {
			t.Errorf("RedactedDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/healthz", noop).Methods(http.MethodGet)
	r.HandleFunc("/api/groups", noop).Methods(http.MethodGet).Name("groups")
	r.HandleFunc("/api/scan", noop).Methods(http.MethodPost)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}
	if routes[1].Name != "groups" || routes[1].Method != http.MethodGet {
		t.Errorf("routes[1] = %+v", routes[1])
	}

	for path, want := range map[string]string{
		"/healthz":                  "healthz",
		"/api/groups":               "api/groups",
		"/api/media/{id}/reprocess": "api/media",
		"/":                         "",
	} {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoadConfigPreparesDatabaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "catalog.db"))

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("database directory not created: %v", err)
	}
	if !filepath.IsAbs(cfg.DatabasePath) {
		t.Errorf("DatabasePath = %s, want absolute", cfg.DatabasePath)
	}
}
