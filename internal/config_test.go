package internal

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Auth.AuthEnabled() {
		t.Error("auth must be disabled by default")
	}
	if cfg.App.HTTP.Address() != ":8080" {
		t.Errorf("unexpected address %q", cfg.App.HTTP.Address())
	}
}

func TestAuthConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
		enabled bool
	}{
		{name: "empty mode normalises to disabled", cfg: AuthConfig{}, wantErr: false, enabled: false},
		{name: "disabled", cfg: AuthConfig{Mode: AuthModeDisabled}, wantErr: false, enabled: false},
		{name: "token with token", cfg: AuthConfig{Mode: AuthModeToken, Token: "s"}, wantErr: false, enabled: true},
		{name: "token without token", cfg: AuthConfig{Mode: AuthModeToken}, wantErr: true},
		{name: "unknown mode", cfg: AuthConfig{Mode: "basic"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.cfg.AuthEnabled() != tt.enabled {
				t.Errorf("AuthEnabled() = %v, want %v", tt.cfg.AuthEnabled(), tt.enabled)
			}
		})
	}
}

func TestCompletionConfigRequiresModels(t *testing.T) {
	cfg := CompletionConfig{BaseURL: "http://localhost:8090"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty model list")
	}
	cfg.Models = []string{"standard"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOrganizerConfigBounds(t *testing.T) {
	cfg := OrganizerConfig{MaxContextBlocks: 0, History: HistoryConfig{MaxItems: 10}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero context window")
	}
	cfg = OrganizerConfig{MaxContextBlocks: 30, History: HistoryConfig{MaxItems: 0}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unbounded history")
	}
}
