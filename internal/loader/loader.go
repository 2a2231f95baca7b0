package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"patchrunner/internal/logging"
	"patchrunner/internal/patch"
	"patchrunner/internal/preflight"
	"patchrunner/internal/report"
)

// MalformedError aborts a whole load: one bad patch blocks the run.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", report.CodeMalformedPatch, e.Path, e.Reason)
}

func (e *MalformedError) Violation() report.Violation {
	return report.Violation{Code: report.CodeMalformedPatch, Path: e.Path, Message: e.Reason}
}

// Script is a discovered patch declaration on disk.
type Script struct {
	ID       patch.ID
	Filename string
	Path     string
}

// Entry is one manifest slot. Patch is nil when the script was rejected before
// its declaration was read.
type Entry struct {
	Script     Script
	Patch      *patch.Patch
	Violations []report.Violation
}

func (s Script) key() patch.Key {
	return patch.Key{ID: s.ID, Filename: s.Filename}
}

func (e Entry) Rejected() bool {
	return len(e.Violations) > 0
}

// Manifest is the ordered result of a load.
type Manifest struct {
	Root    string
	Entries []Entry
}

// Rejected returns the entries that failed the path check.
func (m *Manifest) Rejected() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Rejected() {
			out = append(out, e)
		}
	}
	return out
}
// declaration is the static part of a patch script.
type declaration struct {
	Description string   `yaml:"description"`
	Files       []string `yaml:"FILES"`
}

type Loader struct {
	Registry *patch.Registry
	Logger   *slog.Logger
}

func New(registry *patch.Registry, logger *slog.Logger) *Loader {
	if registry == nil {
		registry = patch.Default
	}
	return &Loader{Registry: registry, Logger: logging.OrDiscard(logger)}
}

// Discover walks root/<category>/<NN>_<slug>.yaml and returns the scripts in
// application order. Names that do not follow the grammar are rejected rather
// than skipped; dot-prefixed entries are ignored.
func (l *Loader) Discover(root string) ([]Script, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("patches root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("patches root %s is not a directory", root)
	}

	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read patches root: %w", err)
	}

	var scripts []Script
	seen := make(map[string]string)
	for _, c := range categories {
		if strings.HasPrefix(c.Name(), ".") {
			continue
		}
		catPath := filepath.Join(root, c.Name())
		catInfo, err := os.Stat(catPath)
		if err != nil {
			return nil, &MalformedError{Path: catPath, Reason: err.Error()}
		}
		if !catInfo.IsDir() {
			return nil, &MalformedError{Path: catPath, Reason: "expected a category directory"}
		}

		files, err := os.ReadDir(catPath)
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", catPath, err)
		}
		for _, f := range files {
			if strings.HasPrefix(f.Name(), ".") {
				continue
			}
			scriptPath := filepath.Join(catPath, f.Name())
			if f.IsDir() {
				return nil, &MalformedError{Path: scriptPath, Reason: "nested directories are not allowed in a category"}
			}
			ext := filepath.Ext(f.Name())
			if ext != ".yaml" && ext != ".yml" {
				return nil, &MalformedError{Path: scriptPath, Reason: "patch scripts must be NN_slug.yaml"}
			}
			id, err := patch.ParseName(c.Name(), strings.TrimSuffix(f.Name(), ext))
			if err != nil {
				return nil, &MalformedError{Path: scriptPath, Reason: err.Error()}
			}
			if prev, dup := seen[id.String()]; dup {
				return nil, &MalformedError{Path: scriptPath, Reason: "duplicate patch id " + id.String() + " (also " + prev + ")"}
			}
			seen[id.String()] = scriptPath
			scripts = append(scripts, Script{ID: id, Filename: f.Name(), Path: scriptPath})
		}
	}

	sort.SliceStable(scripts, func(i, j int) bool {
		return scripts[i].key().Less(scripts[j].key())
	})
	return scripts, nil
}

// Load discovers scripts under root, path-checks every one of them, and reads
// the FILES declaration of those that pass. Bodies are bound from the registry;
// nothing is executed.
func (l *Loader) Load(ctx context.Context, root string) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve patches root: %w", err)
	}
	scripts, err := l.Discover(abs)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Root: abs}
	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if vs := preflight.CheckPath(abs, s.Path); len(vs) > 0 {
			l.Logger.Warn("patch rejected by path check", "patch", s.ID.String(), "path", s.Path)
			m.Entries = append(m.Entries, Entry{Script: s, Violations: vs})
			continue
		}

		p, err := l.loadScript(s)
		if err != nil {
			return nil, err
		}
		l.Logger.Debug("patch loaded", "patch", p.ID.String(), "files", p.DeclaredFiles())
		m.Entries = append(m.Entries, Entry{Script: s, Patch: p})
	}
	return m, nil
}

func (l *Loader) loadScript(s Script) (*patch.Patch, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &MalformedError{Path: s.Path, Reason: err.Error()}
	}
	decl, err := ParseDeclaration(raw)
	if err != nil {
		return nil, &MalformedError{Path: s.Path, Reason: err.Error()}
	}
	body, ok := l.Registry.Lookup(s.ID)
	if !ok {
		return nil, &MalformedError{Path: s.Path, Reason: "no body registered for " + s.ID.String()}
	}
	p, err := patch.New(s.ID, s.Filename, s.Path, decl.Files, body)
	if err != nil {
		return nil, &MalformedError{Path: s.Path, Reason: err.Error()}
	}
	p.Description = strings.TrimSpace(decl.Description)
	return p, nil
}

// ParseDeclaration decodes the static part of a patch script. Unknown keys are
// rejected and FILES must be present and non-empty.
func ParseDeclaration(raw []byte) (declaration, error) {
	var decl declaration
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil {
		if errors.Is(err, io.EOF) {
			return decl, errors.New("missing FILES declaration")
		}
		return decl, fmt.Errorf("parse declaration: %w", err)
	}
	if decl.Files == nil {
		return decl, errors.New("missing FILES declaration")
	}
	if len(decl.Files) == 0 {
		return decl, errors.New("FILES declaration is empty")
	}
	return decl, nil
}
