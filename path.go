package hpak

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizePath converts a path to the canonical form that is hashed.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: `a\b` → "a/b"
//   - Strips leading and trailing slashes: "/a/b/" → "a/b"
//   - Collapses consecutive slashes: "a//b" → "a/b"
//   - Drops "." segments: "a/./b" → "a/b"
//   - Maps the root to the empty string: "/", "." and "" → ""
//
// Case is preserved. ".." segments are kept; ValidatePath rejects them.
func NormalizePath(p string) string {
	if strings.IndexByte(p, '\\') >= 0 {
		p = strings.ReplaceAll(p, "\\", "/")
	}
	if isCanonical(p) {
		return p
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}

// isCanonical reports whether p is already normalized, so the common case
// avoids allocating.
func isCanonical(p string) bool {
	if p == "" {
		return true
	}
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "" || seg == "." {
			return false
		}
	}
	return true
}

// ValidatePath normalizes p and checks it can name an archive entry.
// The root and paths containing ".." segments are rejected with ErrInvalidPath.
func ValidatePath(p string) (string, error) {
	n := NormalizePath(p)
	if n == "" {
		return "", &EntryError{Op: "validate", Path: p, Err: ErrInvalidPath}
	}
	if slices.Contains(strings.Split(n, "/"), "..") {
		return "", &EntryError{Op: "validate", Path: p, Hash: HashPath(n), Err: ErrInvalidPath}
	}
	return n, nil
}

// HashPath returns the 64-bit key of p: XXH64 with seed zero over the UTF-8
// bytes of NormalizePath(p). The root directory is HashPath("").
func HashPath(p string) uint64 {
	return xxhash.Sum64String(NormalizePath(p))
}

// SplitPath splits a normalized path into its parent directory and final
// element. Top-level names have parent "".
func SplitPath(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// ParentPath returns the parent of a normalized path. The root is its own parent.
func ParentPath(p string) string {
	dir, _ := SplitPath(p)
	return dir
}

// ancestors returns the parent chain of a normalized path from the
// immediate parent up to and including the root.
func ancestors(p string) []string {
	var out []string
	for p != "" {
		p = ParentPath(p)
		out = append(out, p)
	}
	return out
}
