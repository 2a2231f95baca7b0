package patch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"patchrunner/internal/workspace"
)

// Body mutates the workspace. It must not fail for its own declared intent; a
// returned error signals a genuine application failure.
type Body func(ctx context.Context, ws *workspace.Workspace) error

var (
	categoryRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	nameRe     = regexp.MustCompile(`^([0-9]{2,})_([a-z0-9][a-z0-9_-]*)$`)
)

// ID names a patch as category/NN_slug.
type ID struct {
	Category string
	Seq      int
	SeqText  string
	Slug     string
}

func (id ID) Name() string {
	return id.SeqText + "_" + id.Slug
}

func (id ID) String() string {
	return id.Category + "/" + id.Name()
}

// ParseID parses "category/NN_slug".
func ParseID(s string) (ID, error) {
	category, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return ID{}, fmt.Errorf("invalid patch id %q: expected category/NN_slug", s)
	}
	return ParseName(category, name)
}

// ParseName validates a category and a NN_slug name (without extension).
func ParseName(category, name string) (ID, error) {
	if !categoryRe.MatchString(category) {
		return ID{}, fmt.Errorf("invalid patch category %q", category)
	}
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return ID{}, fmt.Errorf("invalid patch name %q: expected NN_slug", name)
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return ID{}, fmt.Errorf("invalid patch sequence %q: %w", m[1], err)
	}
	return ID{Category: category, Seq: seq, SeqText: m[1], Slug: m[2]}, nil
}

// Patch is a single declared, ordered unit of workspace mutation. Patches are
// immutable once loaded.
type Patch struct {
	ID          ID
	Filename    string
	Path        string
	Description string
	files       []string
	Body        Body
}

// New builds a patch with its declared files normalized, deduplicated and
// sorted. At least one file is required.
func New(id ID, filename, path string, files []string, body Body) (*Patch, error) {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		clean, err := workspace.CleanRel(f)
		if err != nil {
			return nil, fmt.Errorf("patch %s: declared file: %w", id, err)
		}
		set[clean] = struct{}{}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("patch %s: FILES must not be empty", id)
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return &Patch{ID: id, Filename: filename, Path: path, files: out, Body: body}, nil
}

// DeclaredFiles returns a copy of the declared file set in sorted order.
func (p *Patch) DeclaredFiles() []string {
	return append([]string(nil), p.files...)
}

func (p *Patch) Declares(path string) bool {
	i := sort.SearchStrings(p.files, path)
	return i < len(p.files) && p.files[i] == path
}

// Key is the sort key of a patch script.
type Key struct {
	ID       ID
	Filename string
}

// Less orders by category, then numeric sequence, then filename.
func (k Key) Less(o Key) bool {
	if k.ID.Category != o.ID.Category {
		return k.ID.Category < o.ID.Category
	}
	if k.ID.Seq != o.ID.Seq {
		return k.ID.Seq < o.ID.Seq
	}
	return k.Filename < o.Filename
}
