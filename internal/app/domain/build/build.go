// Package build models the output of the external build collaborator and
// its partition into code files and offloadable assets.
package build

import (
	"path"
	"sort"
	"strings"
)

// Artifact is the ephemeral path to content map produced by a build. It is
// never persisted; the orchestrator consumes it within a single pipeline run.
type Artifact map[string]string

// codeExtensions is the closed set of extensions served from the worker
// itself. Everything else is offloaded to object storage.
var codeExtensions = map[string]struct{}{
	"html": {},
	"js":   {},
	"mjs":  {},
	"css":  {},
	"json": {},
	"xml":  {},
	"txt":  {},
	"map":  {},
}

// contentTypes maps code extensions to the Content-Type the worker serves.
var contentTypes = map[string]string{
	"html": "text/html; charset=utf-8",
	"js":   "application/javascript; charset=utf-8",
	"mjs":  "application/javascript; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"json": "application/json; charset=utf-8",
	"xml":  "application/xml; charset=utf-8",
	"txt":  "text/plain; charset=utf-8",
	"map":  "application/json; charset=utf-8",
}

// assetContentTypes covers the common binary extensions seen in build
// outputs, for object storage uploads.
var assetContentTypes = map[string]string{
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"webp":  "image/webp",
	"svg":   "image/svg+xml",
	"ico":   "image/x-icon",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
	"pdf":   "application/pdf",
	"wasm":  "application/wasm",
}

// Ext returns the lower-cased extension of p without the leading dot.
func Ext(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// IsCodePath reports whether p belongs in the worker bundle rather than
// object storage. The decision is purely extension-based.
func IsCodePath(p string) bool {
	_, ok := codeExtensions[Ext(p)]
	return ok
}

// ContentTypeFor returns the Content-Type to serve a file with. Unknown
// extensions fall back to text/plain.
func ContentTypeFor(p string) string {
	ext := Ext(p)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct, ok := assetContentTypes[ext]; ok {
		return ct
	}
	return "text/plain; charset=utf-8"
}

// Classify partitions a build artifact into code files and asset files.
// The partitions are exhaustive and mutually exclusive; the input is not
// modified and an empty or nil artifact yields two empty maps.
func Classify(files Artifact) (code Artifact, assets Artifact) {
	code = make(Artifact, len(files))
	assets = make(Artifact)
	for p, content := range files {
		if IsCodePath(p) {
			code[p] = content
		} else {
			assets[p] = content
		}
	}
	return code, assets
}

// Paths returns the artifact's paths in sorted order, for deterministic
// iteration in logs and serialized output.
func (a Artifact) Paths() []string {
	paths := make([]string, 0, len(a))
	for p := range a {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalBytes returns the summed content length of the artifact.
func (a Artifact) TotalBytes() int {
	total := 0
	for _, content := range a {
		total += len(content)
	}
	return total
}
