package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/chunkflow/pkg/config"
)

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := config.GetDefaultConfig()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Task.MaxChunkSize <= cfg.Task.MinChunkSize {
		t.Fatalf("expected MaxChunkSize > MinChunkSize, got %d <= %d", cfg.Task.MaxChunkSize, cfg.Task.MinChunkSize)
	}
}

func TestLoadFallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Fatalf("expected default log level INFO, got %q", cfg.Logging.Level)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
  output: stdout
task:
  chunk_size: "2MiB"
  min_chunk_size: "256KiB"
  max_chunk_size: "8MiB"
  concurrency: 4
  retry_count: 2
  retry_delay: 500ms
  target_latency: 2s
  verify_batch_window: 25ms
manager:
  max_concurrent_tasks: 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("expected level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Task.ChunkSize != 2<<20 {
		t.Fatalf("expected chunk_size 2MiB, got %d", cfg.Task.ChunkSize)
	}
	if cfg.Manager.MaxConcurrentTasks != 5 {
		t.Fatalf("expected max_concurrent_tasks 5, got %d", cfg.Manager.MaxConcurrentTasks)
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "TRACE"
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidateRejectsMaxChunkSizeBelowMin(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Task.MaxChunkSize = cfg.Task.MinChunkSize / 2
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected validation error when max_chunk_size < min_chunk_size")
	}
}

func TestValidateRequiresResumeDirWhenBadgerBackend(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Resume.Backend = "badger"
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected validation error when badger backend has no dir")
	}
	cfg.Resume.Dir = "/tmp/chunkflow-resume"
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("expected valid config with dir set, got: %v", err)
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := config.GetDefaultConfig()
	cfg.Manager.MaxConcurrentTasks = 7

	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if loaded.Manager.MaxConcurrentTasks != 7 {
		t.Fatalf("expected max_concurrent_tasks 7 after round trip, got %d", loaded.Manager.MaxConcurrentTasks)
	}
}

func TestTaskConfigConversion(t *testing.T) {
	cfg := config.GetDefaultConfig()
	taskCfg := cfg.TaskConfig()
	if taskCfg.ChunkSize != uint64(cfg.Task.ChunkSize) {
		t.Fatalf("expected ChunkSize to carry over, got %d want %d", taskCfg.ChunkSize, cfg.Task.ChunkSize)
	}
	if taskCfg.Concurrency != cfg.Task.Concurrency {
		t.Fatalf("expected Concurrency to carry over, got %d want %d", taskCfg.Concurrency, cfg.Task.Concurrency)
	}
}

func TestManagerConfigConversion(t *testing.T) {
	cfg := config.GetDefaultConfig()
	managerCfg := cfg.ManagerConfig()
	if managerCfg.MaxConcurrentTasks != cfg.Manager.MaxConcurrentTasks {
		t.Fatalf("expected MaxConcurrentTasks to carry over")
	}
}

func TestResumeStoreSelectsMemoryByDefault(t *testing.T) {
	cfg := config.GetDefaultConfig()
	st, err := cfg.ResumeStore()
	if err != nil {
		t.Fatalf("ResumeStore: %v", err)
	}
	defer st.Close()
}

func TestResumeStoreRejectsUnknownBackend(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Resume.Backend = "s3"
	if _, err := cfg.ResumeStore(); err == nil {
		t.Fatal("expected an error for an unknown resume backend")
	}
}

func TestInitConfigWritesDefaultFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	_ = os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer func() {
		if oldXDG != "" {
			_ = os.Setenv("XDG_CONFIG_HOME", oldXDG)
		} else {
			_ = os.Unsetenv("XDG_CONFIG_HOME")
		}
	}()

	path, err := config.InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}

	if _, err := config.InitConfig(false); err == nil {
		t.Fatal("expected InitConfig to refuse to overwrite without force")
	}
	if _, err := config.InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force: %v", err)
	}
}
