package github

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeGHStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses a shell script gh stub")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gh"), []byte(script), 0o755); err != nil {
		t.Fatalf("write gh stub: %v", err)
	}
	return dir
}

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name      string
		provided  string
		githubEnv string
		ghEnv     string
		ghScript  string
		wantTok   string
		wantSrc   TokenSource
		wantErr   bool
	}{
		{name: "explicit wins", provided: " explicit ", githubEnv: "env", wantTok: "explicit", wantSrc: TokenSourceExplicit},
		{name: "GITHUB_TOKEN", githubEnv: "env-token", ghEnv: "gh-env", wantTok: "env-token", wantSrc: TokenSourceEnv},
		{name: "GH_TOKEN fallback", ghEnv: "gh-env", wantTok: "gh-env", wantSrc: TokenSourceGHEnv},
		{name: "gh cli", ghScript: "#!/bin/sh\necho gh-token\n", wantTok: "gh-token", wantSrc: TokenSourceCLI},
		{name: "gh not logged in", ghScript: "#!/bin/sh\nexit 1\n"},
		{name: "gh whitespace output", ghScript: "#!/bin/sh\nprintf 'a\\nb\\n'\n", wantErr: true},
		{name: "nothing available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_TOKEN", tt.githubEnv)
			t.Setenv("GH_TOKEN", tt.ghEnv)
			if tt.ghScript != "" {
				t.Setenv("PATH", writeGHStub(t, tt.ghScript))
			} else {
				t.Setenv("PATH", t.TempDir())
			}

			tok, src, err := ResolveToken(context.Background(), tt.provided)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveToken: %v", err)
			}
			if tok != tt.wantTok || src != tt.wantSrc {
				t.Fatalf("got (%q, %q), want (%q, %q)", tok, src, tt.wantTok, tt.wantSrc)
			}
		})
	}
}

func TestResolveToken_CanceledContext(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("PATH", writeGHStub(t, "#!/bin/sh\nsleep 5\necho late\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ResolveToken(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
