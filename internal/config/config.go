package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"patchrunner/internal/flags"
)

type Config struct {
	// MAINTAINER NOTE: fields added here need a flag in internal/cli/run.go
	// and an entry in the flag overlay table in internal/cli/overlay.go.
	Patches   Patches   `yaml:"patches"`
	Workspace Workspace `yaml:"workspace"`
	Git       Git       `yaml:"git"`
	Policy    Policy    `yaml:"policy"`
	Output    Output    `yaml:"output"`
	Runtime   Runtime   `yaml:"runtime"`
}

type Patches struct {
	// Root is the patch tree, laid out as <category>/<NN>_<slug>.yaml (see --patches).
	Root string `yaml:"root"`
}

type Workspace struct {
	// Root is the directory patches mutate and commits are taken from (see --workspace).
	Root string `yaml:"root"`

	// Exclude lists workspace-relative paths ignored by snapshots (see --exclude).
	// Values may be provided as repeated flags and/or comma-separated lists.
	Exclude []string `yaml:"exclude"`
}

const (
	BackendGit    = "git"
	BackendRecord = "record"

	PushEnd   = "end"
	PushEach  = "each"
	PushNever = "never"
)

type Git struct {
	// Backend selects the version control implementation (see --backend).
	// Allowed values: git, record. "record" keeps an in-memory commit log.
	Backend string `yaml:"backend"`

	// Remote is the push remote (see --remote).
	Remote string `yaml:"remote"`

	// Branch is the remote branch pushed to; empty means the current branch (see --branch).
	Branch string `yaml:"branch"`

	// Push controls when commits are pushed (see --push).
	// Allowed values: end, each, never.
	Push string `yaml:"push"`

	AuthorName  string `yaml:"author-name"`
	AuthorEmail string `yaml:"author-email"`

	// OpenPR opens a pull request for the pushed branch after a successful push (see --open-pr).
	OpenPR bool `yaml:"open-pr"`

	// Repo is the GitHub repository as OWNER/REPO or URL (see --repo). Required with OpenPR.
	Repo string `yaml:"repo"`

	// Base is the pull request base branch (see --base).
	Base string `yaml:"base"`
}

const (
	OnFailureHalt     = "halt"
	OnFailureContinue = "continue"

	RollbackKeep   = "keep"
	RollbackRewind = "rewind"
)

type Policy struct {
	// OnFailure decides whether a rejected, violated or failed patch stops the run (see --on-failure).
	// Allowed values: halt, continue.
	OnFailure string `yaml:"on-failure"`

	// Rollback decides what happens to the run's commits after a halting failure (see --rollback).
	// Allowed values: keep, rewind. Commits already pushed are never rewound.
	Rollback string `yaml:"rollback"`
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string `yaml:"console-format"`

	// ConsoleFilterOutcome filters console output by outcome (see --console-filter-outcome).
	// Allowed values: applied, rejected, violated, failed, skipped.
	ConsoleFilterOutcome []string `yaml:"console-filter-outcome"`

	// Report writes a Markdown report to this path (see --report).
	Report string `yaml:"report"`

	// Out writes structured output to this path (see --out).
	Out string `yaml:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string `yaml:"out-format"`

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `yaml:"emit"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `yaml:"no-console"`
}

type Runtime struct {
	// Concurrency bounds parallel file hashing during snapshots (see --concurrency).
	// Must be >= 1.
	Concurrency int `yaml:"concurrency"`

	// Timeout is the global timeout for the run (see --timeout). Must be > 0.
	Timeout time.Duration `yaml:"timeout"`

	// PatchTimeout bounds a single patch body (see --patch-timeout). 0 means none.
	PatchTimeout time.Duration `yaml:"patch-timeout"`

	// DryRun loads and path-checks patches, then prints the plan (see --dry-run).
	DryRun bool `yaml:"dry-run"`

	Verbose bool `yaml:"verbose"`
}

func New() *Config {
	return &Config{
		Patches: Patches{
			Root: "badguys/patches",
		},
		Workspace: Workspace{
			Root: ".",
		},
		Git: Git{
			Backend: BackendGit,
			Remote:  "origin",
			Push:    PushEnd,
			Base:    "main",
		},
		Policy: Policy{
			OnFailure: OnFailureHalt,
			Rollback:  RollbackKeep,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 8,
			Timeout:     30 * time.Minute,
		},
	}
}

func (c *Config) Validate() error {
	c.Workspace.Exclude = splitCommaList(c.Workspace.Exclude)
	c.Output.ConsoleFilterOutcome = splitCommaList(c.Output.ConsoleFilterOutcome)
	c.Output.Emit = splitCommaList(c.Output.Emit)

	c.Patches.Root = strings.TrimSpace(c.Patches.Root)
	if c.Patches.Root == "" {
		return errors.New("--patches must be provided")
	}
	c.Workspace.Root = strings.TrimSpace(c.Workspace.Root)
	if c.Workspace.Root == "" {
		return errors.New("--workspace must be provided")
	}
	for _, ex := range c.Workspace.Exclude {
		if filepath.IsAbs(ex) || ex == ".." || strings.HasPrefix(filepath.ToSlash(ex), "../") {
			return fmt.Errorf("invalid --exclude entry %q: must be workspace-relative", ex)
		}
	}

	var err error
	if c.Git.Backend, err = oneOf(flags.FlagBackend, c.Git.Backend, BackendGit, BackendGit, BackendRecord); err != nil {
		return err
	}
	if c.Git.Push, err = oneOf(flags.FlagPush, c.Git.Push, PushEnd, PushEnd, PushEach, PushNever); err != nil {
		return err
	}
	c.Git.Remote = strings.TrimSpace(c.Git.Remote)
	if c.Git.Remote == "" {
		c.Git.Remote = "origin"
	}
	if c.Git.OpenPR {
		if c.Git.Push == PushNever {
			return errors.New("--open-pr requires --push end or each")
		}
		if strings.TrimSpace(c.Git.Repo) == "" {
			return errors.New("--open-pr requires --repo")
		}
		if strings.TrimSpace(c.Git.Base) == "" {
			return errors.New("--open-pr requires --base")
		}
	}

	if c.Policy.OnFailure, err = oneOf(flags.FlagOnFailure, c.Policy.OnFailure, OnFailureHalt, OnFailureHalt, OnFailureContinue); err != nil {
		return err
	}
	if c.Policy.Rollback, err = oneOf(flags.FlagRollback, c.Policy.Rollback, RollbackKeep, RollbackKeep, RollbackRewind); err != nil {
		return err
	}

	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}
	for i, o := range c.Output.ConsoleFilterOutcome {
		v := normalizeEnumValue(o)
		switch v {
		case "applied", "rejected", "violated", "failed", "skipped":
			c.Output.ConsoleFilterOutcome[i] = v
		default:
			return fmt.Errorf("unsupported --console-filter-outcome value: %s (must be one of: applied, rejected, violated, failed, skipped)", o)
		}
	}
	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson":
				c.Output.OutFormat = "ndjson"
			case "":
				return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
			default:
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.PatchTimeout < 0 {
		return errors.New("--patch-timeout must be >= 0")
	}

	return nil
}

func oneOf(flag, raw, def string, allowed ...string) (string, error) {
	v := normalizeEnumValue(raw)
	if v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported --%s: %s (must be one of: %s)", flag, v, strings.Join(allowed, ", "))
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
