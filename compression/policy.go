package compression

import (
	"maps"
	"path"
	"strings"
)

// Policy maps file extensions to the algorithm used for their data blocks.
// Keys are lower-case extensions without the leading dot.
type Policy map[string]Algorithm

// DefaultPolicy returns the built-in extension table.
//
// Formats that are already compressed are stored as-is; recompressing them
// costs build time and read latency for no size benefit. Text formats get
// DEFLATE.
func DefaultPolicy() Policy {
	p := make(Policy, len(storedExts)+len(textExts))
	for _, ext := range storedExts {
		p[ext] = None
	}
	for _, ext := range textExts {
		p[ext] = Deflate
	}
	return p
}

var storedExts = []string{
	// images and GPU textures
	"avif", "basis", "dds", "gif", "heic", "ico", "jpeg", "jpg", "ktx2", "png", "webp",
	// audio
	"aac", "flac", "m4a", "mp3", "ogg", "opus", "wav",
	// video
	"m4v", "mkv", "mov", "mp4", "webm",
	// fonts
	"woff", "woff2",
	// archives and compressed streams
	"7z", "br", "bz2", "gz", "hpak", "lz4", "rar", "sz", "tgz", "xz", "zip", "zst",
	"pdf",
}

var textExts = []string{
	"csv", "frag", "glsl", "gltf", "hlsl", "html", "json", "md", "mtl", "obj",
	"ron", "scn", "svg", "toml", "txt", "vert", "wgsl", "xml", "yaml", "yml",
}

// Lookup returns the algorithm configured for the extension of name.
func (p Policy) Lookup(name string) (Algorithm, bool) {
	ext := extKey(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if ext == "" {
		return 0, false
	}
	alg, ok := p[ext]
	return alg, ok
}

// Resolve returns the configured algorithm for name, or fallback.
func (p Policy) Resolve(name string, fallback Algorithm) Algorithm {
	if alg, ok := p.Lookup(name); ok {
		return alg
	}
	return fallback
}

// Set configures ext, which may be given with or without a leading dot.
func (p Policy) Set(ext string, alg Algorithm) {
	if key := extKey(ext); key != "" {
		p[key] = alg
	}
}

// Clone returns an independent copy of p.
func (p Policy) Clone() Policy {
	if p == nil {
		return Policy{}
	}
	return maps.Clone(p)
}

func extKey(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
