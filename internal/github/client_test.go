package github

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_NilContextReturnsError(t *testing.T) {
	var nilCtx context.Context
	_, err := NewClient(nilCtx, "")
	if err == nil || !strings.Contains(err.Error(), "ctx is nil") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewClient_LogsAndSendsAuthHeader(t *testing.T) {
	ctx := context.Background()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(server.Close)

	for _, token := range []string{"", "test-token"} {
		gotAuth = ""
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		c, err := NewClient(ctx, token, WithLogger(logger), WithBaseURL(server.URL))
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		req, err := c.Client.NewRequest("GET", "rate_limit", nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		if _, err := c.Client.Do(ctx, req, nil); err != nil {
			t.Fatalf("Do: %v", err)
		}
		if !strings.Contains(buf.String(), "github api request") {
			t.Fatalf("expected request log, got %q", buf.String())
		}
		if token == "" && gotAuth != "" {
			t.Fatalf("expected no Authorization header, got %q", gotAuth)
		}
		if token != "" && !strings.Contains(gotAuth, token) {
			t.Fatalf("expected Authorization header with token, got %q", gotAuth)
		}
	}
}

func TestOpenPullRequest(t *testing.T) {
	ctx := context.Background()

	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/widgets/pulls" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":7,"html_url":"https://github.com/acme/widgets/pull/7"}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(ctx, "tok", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	pr, err := c.OpenPullRequest(ctx, Repo{Owner: "acme", Name: "widgets"}, "patches", "main", "Apply patches", "body")
	if err != nil {
		t.Fatalf("OpenPullRequest: %v", err)
	}
	if pr.Number != 7 || pr.URL != "https://github.com/acme/widgets/pull/7" {
		t.Fatalf("unexpected pr: %+v", pr)
	}
	if got["head"] != "patches" || got["base"] != "main" || got["title"] != "Apply patches" {
		t.Fatalf("unexpected request body: %v", got)
	}
}

func TestOpenPullRequest_ErrorStatus(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(ctx, "tok", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.OpenPullRequest(ctx, Repo{Owner: "acme", Name: "widgets"}, "h", "main", "t", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "acme/widgets", want: "acme/widgets"},
		{in: " acme/widgets/ ", want: "acme/widgets"},
		{in: "https://github.com/acme/widgets.git", want: "acme/widgets"},
		{in: "git@github.com:acme/widgets.git", want: "acme/widgets"},
		{in: "ssh://git@github.com/acme/widgets", want: "acme/widgets"},
		{in: "", wantErr: true},
		{in: "acme", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepo(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepo: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
