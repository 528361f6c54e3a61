package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestLoadMissingFileReturnsEmptyProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if got := p.Get("swift_cache_prefix", "", "fallback"); got != "fallback" {
		t.Fatalf("expected default from empty provider, got %q", got)
	}
}

func TestLoadReadsFlatSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.Join([]string{
		`swift_cache_container_name = "pip-accel"`,
		`swift_cache_prefix = "wheels"`,
		`os_username = "builder"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := p.Get("swift_cache_container_name", "", ""); got != "pip-accel" {
		t.Fatalf("container mismatch: got %q", got)
	}
	if got := p.Get("os_username", "OS_USERNAME", ""); got != "builder" {
		t.Fatalf("username mismatch: got %q", got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "decode config file") {
		t.Fatalf("expected decode error, got: %v", err)
	}
}

func TestGetPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		env      map[string]string
		want     string
	}{
		{
			name:     "explicit property wins over environment",
			settings: map[string]string{"os_auth_url": "https://config.example/v3"},
			env:      map[string]string{"OS_AUTH_URL": "https://env.example/v3"},
			want:     "https://config.example/v3",
		},
		{
			name: "environment wins over default",
			env:  map[string]string{"OS_AUTH_URL": "https://env.example/v3"},
			want: "https://env.example/v3",
		},
		{
			name: "default when nothing provided",
			want: "https://default.example/v3",
		},
		{
			name:     "explicit empty string counts as provided",
			settings: map[string]string{"os_auth_url": ""},
			env:      map[string]string{"OS_AUTH_URL": "https://env.example/v3"},
			want:     "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewWithEnv(tc.settings, envMap(tc.env))
			got := p.Get("os_auth_url", "OS_AUTH_URL", "https://default.example/v3")
			if got != tc.want {
				t.Fatalf("resolved value mismatch: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestLookupReportsAbsence(t *testing.T) {
	p := NewWithEnv(nil, noEnv)

	if _, ok := p.Lookup("os_region_name", "OS_REGION_NAME"); ok {
		t.Fatal("expected absent lookup")
	}

	p = NewWithEnv(nil, envMap(map[string]string{"OS_REGION_NAME": "RegionOne"}))
	got, ok := p.Lookup("os_region_name", "OS_REGION_NAME")
	if !ok || got != "RegionOne" {
		t.Fatalf("lookup mismatch: got %q ok=%v", got, ok)
	}
}

func TestLookupSkipsEnvironmentWhenVariableUnnamed(t *testing.T) {
	p := NewWithEnv(nil, func(string) (string, bool) {
		t.Fatal("environment consulted for unnamed variable")
		return "", false
	})
	if _, ok := p.Lookup("internal_only", ""); ok {
		t.Fatal("expected absent lookup")
	}
}

func TestBinaryCacheDir(t *testing.T) {
	p := NewWithEnv(map[string]string{"binary_cache_dir": "/var/cache/pip-accel"}, noEnv)
	dir, err := p.BinaryCacheDir()
	if err != nil {
		t.Fatalf("binary cache dir: %v", err)
	}
	if dir != "/var/cache/pip-accel" {
		t.Fatalf("dir mismatch: got %q", dir)
	}

	p = NewWithEnv(nil, envMap(map[string]string{"PIP_ACCEL_CACHE": "/tmp/pip-cache"}))
	dir, err = p.BinaryCacheDir()
	if err != nil {
		t.Fatalf("binary cache dir from env: %v", err)
	}
	if dir != "/tmp/pip-cache" {
		t.Fatalf("dir mismatch: got %q", dir)
	}

	p = NewWithEnv(nil, noEnv)
	dir, err = p.BinaryCacheDir()
	if err != nil {
		t.Fatalf("default binary cache dir: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".pip-accel", "binaries")) {
		t.Fatalf("unexpected default dir: %q", dir)
	}
}
