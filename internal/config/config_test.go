package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8082 {
		t.Errorf("Expected port 8082, got %d", cfg.Server.Port)
	}
	if cfg.MES.WorksheetActionID != "mes.workorder_worksheet_form_action" {
		t.Errorf("Unexpected worksheet action id %q", cfg.MES.WorksheetActionID)
	}
	if cfg.MES.EmployeeCacheTTL != 10*time.Minute {
		t.Errorf("Expected 10m employee cache ttl, got %v", cfg.MES.EmployeeCacheTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FEISHU_ISSUE_CHAT_ID", "oc_123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" {
		t.Errorf("Database env not applied: %+v", cfg.Database)
	}
	if cfg.JWT.Secret != "s3cret" {
		t.Errorf("Expected jwt secret from env, got %q", cfg.JWT.Secret)
	}
	if cfg.Feishu.IssueChatID != "oc_123" {
		t.Errorf("Expected issue chat id from env, got %q", cfg.Feishu.IssueChatID)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); !errors.Is(err, ErrJWTSecretRequired) {
		t.Fatalf("Expected ErrJWTSecretRequired, got %v", err)
	}

	t.Setenv("JWT_SECRET", "   ")
	if _, err := Load(); !errors.Is(err, ErrJWTSecretRequired) {
		t.Fatalf("Expected ErrJWTSecretRequired for blank secret, got %v", err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
