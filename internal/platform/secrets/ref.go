package secrets

import (
	"fmt"
	"net/url"
	"strings"
)

// Ref points at one Secret Manager secret version. Config values spell it
// secret://name[?version=N]; sm:// is accepted as an alias.
type Ref struct {
	Name    string
	Version string
}

// ParseRef parses a secret reference. A missing version means latest.
func ParseRef(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "sm://"); ok {
		s = "secret://" + rest
	}
	u, err := url.Parse(s)
	if err != nil {
		return Ref{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return Ref{}, fmt.Errorf("secrets: reference %q must use secret://", raw)
	}
	ref := Ref{
		Name:    strings.Trim(u.Host+u.Path, "/"),
		Version: strings.TrimSpace(u.Query().Get("version")),
	}
	if ref.Name == "" {
		return Ref{}, fmt.Errorf("secrets: reference %q names no secret", raw)
	}
	if ref.Version == "" {
		ref.Version = "latest"
	}
	return ref, nil
}

// Resource is the Secret Manager version resource name inside project.
func (r Ref) Resource(project string) string {
	return "projects/" + project + "/secrets/" + r.Name + "/versions/" + r.Version
}

func (r Ref) String() string {
	return "secret://" + r.Name + "?version=" + r.Version
}
