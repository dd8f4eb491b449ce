package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL: "postgresql://localhost/certprep",
		Bank:        BankConfig{Source: "postgres", BasicTierLimit: 20},
		Progress:    ProgressConfig{Backend: "sqlite"},
		Exam:        ExamConfig{MockQuestions: 65, MockDuration: 90 * time.Minute, PassingPercent: 70},
		RateLimit:   RateLimitConfig{PerMinute: 120, Burst: 20},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"file bank without database", func(c *Config) { c.Bank.Source = "file"; c.DatabaseURL = "" }, false},
		{"postgres bank without database", func(c *Config) { c.DatabaseURL = "" }, true},
		{"unknown bank source", func(c *Config) { c.Bank.Source = "s3" }, true},
		{"unknown progress backend", func(c *Config) { c.Progress.Backend = "etcd" }, true},
		{"zero mock questions", func(c *Config) { c.Exam.MockQuestions = 0 }, true},
		{"sub-second mock duration", func(c *Config) { c.Exam.MockDuration = 500 * time.Millisecond }, true},
		{"passing percent above 100", func(c *Config) { c.Exam.PassingPercent = 101 }, true},
		{"rate limit without burst", func(c *Config) { c.RateLimit.Burst = 0 }, true},
		{"rate limit disabled", func(c *Config) { c.RateLimit = RateLimitConfig{} }, false},
		{"minio bank", func(c *Config) {
			c.Bank.Source = "minio"
			c.Bank.Minio = MinioConfig{Endpoint: "localhost:9000", Bucket: "bank"}
		}, false},
		{"minio bank without bucket", func(c *Config) {
			c.Bank.Source = "minio"
			c.Bank.Minio = MinioConfig{Endpoint: "localhost:9000"}
		}, true},
		{"tracing without collector", func(c *Config) { c.Tracing = TracingConfig{Enabled: true} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CERTPREP_PROGRESS_BACKEND", "memory")
	t.Setenv("CERTPREP_EXAM_MOCK_QUESTIONS", "10")
	t.Setenv("CERTPREP_EXAM_MOCK_DURATION", "15m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Progress.Backend != "memory" {
		t.Errorf("Progress.Backend = %q, want memory", cfg.Progress.Backend)
	}
	if cfg.Exam.MockQuestions != 10 || cfg.Exam.MockDuration != 15*time.Minute {
		t.Errorf("Exam = %+v, want 10 questions over 15m", cfg.Exam)
	}
	if cfg.Bank.BasicTierLimit != 20 {
		t.Errorf("Bank.BasicTierLimit = %d, want default 20", cfg.Bank.BasicTierLimit)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.ServiceName != "certprep-server" {
		t.Errorf("Tracing = %+v, want disabled certprep-server", cfg.Tracing)
	}
	if len(cfg.Exam.Categories) != 4 {
		t.Errorf("Exam.Categories = %v, want 4 defaults", cfg.Exam.Categories)
	}
}
