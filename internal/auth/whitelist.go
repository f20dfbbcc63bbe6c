package auth

import (
	"path"
	"strings"
)

// Whitelist matches request paths that do not require an identity.
//
// Supported patterns:
//
//	/exact      the path itself
//	/base/**    /base and everything below it
//	/base/*     exactly one segment below /base
type Whitelist struct {
	exact    map[string]struct{}
	subtrees []string
	children []string
}

// NewWhitelist compiles patterns.
func NewWhitelist(patterns []string) *Whitelist {
	w := &Whitelist{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case strings.HasSuffix(p, "/**"):
			w.subtrees = append(w.subtrees, strings.TrimSuffix(p, "/**"))
		case strings.HasSuffix(p, "/*"):
			w.children = append(w.children, strings.TrimSuffix(p, "/*"))
		default:
			w.exact[cleanPath(p)] = struct{}{}
		}
	}
	return w
}

// Matches reports whether path is whitelisted.
func (w *Whitelist) Matches(requestPath string) bool {
	if w == nil {
		return false
	}
	p := cleanPath(requestPath)
	if _, ok := w.exact[p]; ok {
		return true
	}
	for _, base := range w.subtrees {
		if base == "" || p == base || strings.HasPrefix(p, base+"/") {
			return true
		}
	}
	for _, base := range w.children {
		rest, ok := strings.CutPrefix(p, base+"/")
		if ok && rest != "" && !strings.Contains(rest, "/") {
			return true
		}
	}
	return false
}

// cleanPath resolves dot segments so that /public/../private is matched as /private.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
