package drift

import (
	gopath "path"
	"strings"
)

// NormalizePath canonicalises a user-supplied path: forward slashes only,
// cleaned of "." and ".." segments, always starting with "/", and without a
// trailing slash (except for the root itself). The function is idempotent.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = gopath.Clean(p)
	if p == "" || p == "." {
		return "/"
	}
	return p
}

// ParentPath returns the parent of a normalized path. The parent of the
// root is the root.
func ParentPath(p string) string {
	parent := gopath.Dir(NormalizePath(p))
	if parent == "" {
		return "/"
	}
	return parent
}

// BaseName returns the final segment of a normalized path.
func BaseName(p string) string {
	return gopath.Base(NormalizePath(p))
}

// Ancestors returns every ancestor of a normalized path ordered root-first,
// excluding the root and the path itself. For "/a/b/c" it returns
// ["/a", "/a/b"].
func Ancestors(p string) []string {
	p = NormalizePath(p)
	if p == "/" {
		return nil
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	var out []string
	cur := ""
	for _, seg := range segments[:len(segments)-1] {
		cur = cur + "/" + seg
		out = append(out, cur)
	}
	return out
}

// IsPublicPath reports whether a path is externally visible. The canonical
// rule: a path is public iff any of its segments equals "Public"
// (case-sensitive). Visibility is derived at write time and stored on the
// entry; it is not recomputed afterwards.
func IsPublicPath(p string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(NormalizePath(p), "/"), "/") {
		if seg == "Public" {
			return true
		}
	}
	return false
}

// DirectChild reports whether child is a direct child of the directory dir,
// and returns the child's name when it is. Grandchildren and deeper
// descendants are rejected.
func DirectChild(dir, child string) (string, bool) {
	dir = NormalizePath(dir)
	child = NormalizePath(child)
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(child, prefix) || child == dir {
		return "", false
	}
	rest := strings.TrimPrefix(child, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
