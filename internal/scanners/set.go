// Package scanners implements the Scanner Set (C1): per-language file
// discovery over a directory tree, dispatched through an
// extension-dispatch table.
package scanners

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/privoscope/privoscope/internal/domain/findings"
	domainscanners "github.com/privoscope/privoscope/internal/domain/scanners"
)

// extensionsByLanguage is the fixed twelve-language extension table (spec §4.1).
var extensionsByLanguage = map[findings.Language][]string{
	findings.LangJavaScript: {".js", ".jsx", ".mjs", ".cjs"},
	findings.LangTypeScript: {".ts", ".tsx"},
	findings.LangJava:       {".java"},
	findings.LangPython:     {".py"},
	findings.LangGo:         {".go"},
	findings.LangCSharp:     {".cs"},
	findings.LangPHP:        {".php"},
	findings.LangRuby:       {".rb"},
	findings.LangSwift:      {".swift"},
	findings.LangKotlin:     {".kt", ".kts"},
	findings.LangRust:       {".rs"},
	findings.LangScala:      {".scala"},
}

// extensionToLanguage is the reverse index, built once at init.
var extensionToLanguage = func() map[string]findings.Language {
	m := make(map[string]findings.Language)
	for lang, exts := range extensionsByLanguage {
		for _, ext := range exts {
			m[ext] = lang
		}
	}
	return m
}()

// baseIgnoredPaths is the fixed ignored-path set from spec §4.1.
var baseIgnoredPaths = []string{"node_modules", ".git", "dist", "build", ".venv", "tool/self"}

// Set is the default, filesystem-backed Scanner Set implementation.
type Set struct{}

// New constructs the default Scanner Set.
func New() *Set { return &Set{} }

var _ domainscanners.Set = (*Set)(nil)

// Scan walks root, returning every file whose extension matches a
// supported language and whose path does not intersect the ignored-path
// set, decoded as UTF-8 and truncated to maxBytesPerFile. Symlink loops are
// broken by canonicalizing each visited directory (spec §4.1, §8 Property 1).
func (s *Set) Scan(root string, maxBytesPerFile int64, extraIgnored []string) ([]domainscanners.ScannedFile, []domainscanners.Warning, error) {
	if maxBytesPerFile <= 0 {
		maxBytesPerFile = 1 << 20
	}
	ignored := append(append([]string{}, baseIgnoredPaths...), extraIgnored...)

	var out []domainscanners.ScannedFile
	var warnings []domainscanners.Warning
	visitedDirs := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, domainscanners.Warning{Path: path, Message: err.Error()})
			return nil
		}
		if isIgnoredPath(path, root, ignored) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			canon, cerr := filepath.EvalSymlinks(path)
			if cerr == nil {
				if visitedDirs[canon] {
					return filepath.SkipDir
				}
				visitedDirs[canon] = true
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, rerr := filepath.EvalSymlinks(path)
			if rerr != nil {
				return nil
			}
			path = resolved
		}

		lang, ok := languageForPath(path)
		if !ok {
			return nil
		}

		content, truncated, rerr := readDecodable(path, maxBytesPerFile)
		if rerr != nil {
			warnings = append(warnings, domainscanners.Warning{Path: path, Message: rerr.Error()})
			return nil
		}
		if content == nil {
			warnings = append(warnings, domainscanners.Warning{Path: path, Message: "binary file skipped"})
			return nil
		}

		out = append(out, domainscanners.ScannedFile{
			Path:      path,
			Content:   normalizeNewlines(*content),
			Language:  lang,
			Truncated: truncated,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, warnings, nil
}

func languageForPath(path string) (findings.Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extensionToLanguage[ext]
	return lang, ok
}

// isIgnoredPath reports whether path intersects the ignored-path set,
// matching whole path segments (so "dist" never matches "distance.go")
// as well as doublestar glob masks.
func isIgnoredPath(path, root string, ignored []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	segs := strings.Split(rel, "/")
	for _, pattern := range ignored {
		if pattern == "" {
			continue
		}
		if containsPathSegments(segs, strings.Split(pattern, "/")) {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+pattern+"/**", rel); ok {
			return true
		}
	}
	return false
}

// containsPathSegments reports whether pat occurs as a contiguous run of
// whole segments somewhere within segs.
func containsPathSegments(segs, pat []string) bool {
	if len(pat) == 0 || len(pat) > len(segs) {
		return false
	}
	for i := 0; i+len(pat) <= len(segs); i++ {
		match := true
		for j, p := range pat {
			if segs[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// readDecodable reads path up to limit bytes, returning (nil, false, nil)
// if the content does not decode as UTF-8 (a binary file).
func readDecodable(path string, limit int64) (*string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	return decodeContent(f, info.Size(), limit)
}

// decodeContent reads up to min(size, limit) bytes from r, looping until
// that many bytes are collected or EOF (a single short Read must not leave
// trailing zero bytes in the result), returning (nil, false, nil) if the
// bytes actually read do not decode as UTF-8.
func decodeContent(r io.Reader, size, limit int64) (*string, bool, error) {
	readLimit := size
	truncated := false
	if readLimit > limit {
		readLimit = limit
		truncated = true
	}
	buf := make([]byte, readLimit)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, false, err
	}
	buf = buf[:n]
	if !utf8.Valid(buf) {
		return nil, false, nil
	}
	s := string(buf)
	return &s, truncated, nil
}

// normalizeNewlines normalizes CRLF to LF; \r\n normalization is the
// scanner's job, not the rule's (spec §4.2 Line numbering).
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
