package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Layout names export objects: "<prefix>/YYYY/MM/DD/<id>.json" for each snapshot and
// "<prefix>/latest.json" for the alias. Day folders follow the venue time zone so a late-night
// export lands under the business day it belongs to.
type Layout struct {
	prefix string
	loc    *time.Location
}

// NewLayout validates prefix. An empty prefix writes at the bucket root; a nil loc means UTC.
func NewLayout(prefix string, loc *time.Location) (Layout, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		for _, part := range strings.Split(prefix, "/") {
			if err := checkSegment(part); err != nil {
				return Layout{}, fmt.Errorf("storage: prefix %q: %w", prefix, err)
			}
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return Layout{prefix: prefix, loc: loc}, nil
}

// Snapshot returns the object name for export id taken at.
func (l Layout) Snapshot(at time.Time, id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := checkSegment(id); err != nil {
		return "", fmt.Errorf("storage: export id %q: %w", id, err)
	}
	return path.Join(l.prefix, at.In(l.loc).Format("2006/01/02"), id+".json"), nil
}

// Latest returns the alias refreshed after every export.
func (l Layout) Latest() string {
	return path.Join(l.prefix, "latest.json")
}

func checkSegment(s string) error {
	switch {
	case s == "":
		return errors.New("empty segment")
	case s == "." || strings.Contains(s, ".."):
		return errors.New("traversal segment")
	case strings.ContainsAny(s, "/\\"):
		return errors.New("path separator in segment")
	}
	return nil
}
