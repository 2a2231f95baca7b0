package github

import (
	"fmt"
	"strings"
)

// Repo names a repository as owner/name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo accepts "owner/name", an https URL, or an ssh remote such as
// "git@github.com:owner/name.git".
func ParseRepo(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Repo{}, fmt.Errorf("empty repository")
	}

	switch {
	case strings.HasPrefix(s, "git@"):
		if i := strings.Index(s, ":"); i >= 0 {
			s = s[i+1:]
		}
	case strings.Contains(s, "://"):
		s = s[strings.Index(s, "://")+3:]
		if i := strings.Index(s, "/"); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
	}
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("invalid repository %q (expected owner/name)", raw)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}
