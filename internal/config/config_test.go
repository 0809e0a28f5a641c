package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:       HTTPConfig{Port: 8080},
		Storage:    StorageConfig{Driver: "sqlite", Path: "data/test.db"},
		Embedding:  EmbeddingConfig{APIKey: "test-key"},
		Generation: GenerationConfig{APIKey: "test-key"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	expected := `storage.driver must be "sqlite" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_SqliteRequiresPath(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing sqlite path")
	}
}

func TestValidate_RedisRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = StorageConfig{Driver: "redis"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}

	cfg.Storage.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RequiredAPIKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing embedding api key")
	}

	cfg = validConfig()
	cfg.Generation.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing generation api key")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.Path != "data/chishiki.db" {
		t.Errorf("path = %q", cfg.Storage.Path)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.OverfetchFactor != 5 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.ContextBudgetBytes != 16384 {
		t.Errorf("context budget = %d", cfg.Retrieval.ContextBudgetBytes)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("write timeout = %d, want 60 (generation calls are slow)", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Embedding.Model == "" || cfg.Generation.Model == "" {
		t.Error("model defaults not applied")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Storage:   StorageConfig{Driver: "redis"},
		Retrieval: RetrievalConfig{TopK: 10},
	}
	cfg.ApplyDefaults()

	if cfg.Storage.Driver != "redis" {
		t.Errorf("driver overridden to %q", cfg.Storage.Driver)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("top_k overridden to %d", cfg.Retrieval.TopK)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CHISHIKI_TEST_VAR", "from-env")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "key: ${CHISHIKI_TEST_VAR}", "key: from-env"},
		{"set variable ignores default", "key: ${CHISHIKI_TEST_VAR:-fallback}", "key: from-env"},
		{"unset with default", "key: ${CHISHIKI_UNSET_VAR:-fallback}", "key: fallback"},
		{"unset without default", "key: ${CHISHIKI_UNSET_VAR}", "key: "},
		{"no variables", "key: plain", "key: plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
