package scanners

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestSet_Scan_MatchesSupportedExtensionsByLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "app.py", "x = 1\n")
	writeFile(t, dir, "README.md", "not scanned\n")

	files, _, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byLang := map[findings.Language]bool{}
	for _, f := range files {
		byLang[f.Language] = true
	}
	assert.True(t, byLang[findings.LangGo])
	assert.True(t, byLang[findings.LangPython])
}

func TestSet_Scan_SkipsBaseIgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/pkg/index.js", "console.log('x')\n")
	writeFile(t, dir, "src/main.js", "console.log('y')\n")

	files, _, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "src")
}

func TestSet_Scan_HonorsExtraIgnoredPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vendor/thing.go", "package vendor\n")
	writeFile(t, dir, "main.go", "package main\n")

	files, _, err := New().Scan(dir, 0, []string{"vendor"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Path, "main.go")
}

func TestSet_Scan_TruncatesOversizedFilesAndFlagsTruncated(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < 100; i++ {
		content += "0123456789"
	}
	writeFile(t, dir, "big.go", content)

	files, _, err := New().Scan(dir, 50, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Truncated)
	assert.Len(t, files[0].Content, 50)
}

func TestSet_Scan_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "blob.go")
	require.NoError(t, os.WriteFile(full, []byte{0xff, 0xfe, 0x00, 0xff, 0x00, 0x01}, 0o644))

	files, warnings, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	require.Len(t, warnings, 1)
	assert.Equal(t, "binary file skipped", warnings[0].Message)
}

func TestSet_Scan_NormalizesCRLFToLF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "win.go", "package main\r\nfunc f() {}\r\n")

	files, _, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.NotContains(t, files[0].Content, "\r\n")
}

func TestSet_Scan_BreaksSymlinkLoops(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeFile(t, dir, "sub/real.go", "package sub\n")
	require.NoError(t, os.Symlink(sub, filepath.Join(sub, "loop")))

	files, _, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	assert.Len(t, files, 1, "a self-referential symlink must not cause infinite recursion")
}

func TestSet_Scan_EmptyDirectoryYieldsNoFilesOrWarnings(t *testing.T) {
	dir := t.TempDir()
	files, warnings, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, warnings)
}

func TestIsIgnoredPath_GlobAndSegmentMatch(t *testing.T) {
	assert.True(t, isIgnoredPath("/root/proj/dist/out.js", "/root/proj", baseIgnoredPaths))
	assert.True(t, isIgnoredPath("/root/proj/dist/out.js", "/root/proj", []string{"dist"}))
	assert.True(t, isIgnoredPath("/root/proj/a/b/tool/self/x.go", "/root/proj", baseIgnoredPaths))
	assert.False(t, isIgnoredPath("/root/proj/src/main.go", "/root/proj", []string{"dist"}))
}

func TestIsIgnoredPath_WholeSegmentOnlyNotSubstring(t *testing.T) {
	assert.False(t, isIgnoredPath("/root/proj/src/distance.go", "/root/proj", []string{"dist"}), "dist must not match distance.go as a substring")
	assert.False(t, isIgnoredPath("/root/proj/internal/builder.go", "/root/proj", []string{"build"}), "build must not match builder.go as a substring")
	assert.True(t, isIgnoredPath("/root/proj/dist/out.js", "/root/proj", []string{"dist"}))
	assert.True(t, isIgnoredPath("/root/proj/build/out.js", "/root/proj", []string{"build"}))
}

func TestSet_Scan_DoesNotFalsePositiveIgnoreSimilarlyNamedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/distance.go", "package src\n")
	writeFile(t, dir, "internal/builder.go", "package internal\n")

	files, _, err := New().Scan(dir, 0, nil)
	require.NoError(t, err)
	require.Len(t, files, 2, "files whose names merely contain an ignored pattern as a substring must still be scanned")
}

func TestDecodeContent_ShortReadsDoNotLeaveTrailingNulBytes(t *testing.T) {
	content := "package main\nfunc main() {}\n"
	r := iotest.OneByteReader(strings.NewReader(content))

	s, truncated, err := decodeContent(r, int64(len(content)), 1<<20)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.NotNil(t, s)
	assert.Equal(t, content, *s, "a reader that only returns one byte per call must still yield the full content, not a NUL-padded buffer")
}

func TestDecodeContent_TruncatesToLimitOnShortReads(t *testing.T) {
	content := strings.Repeat("a", 100)
	r := iotest.OneByteReader(strings.NewReader(content))

	s, truncated, err := decodeContent(r, int64(len(content)), 40)
	require.NoError(t, err)
	assert.True(t, truncated)
	require.NotNil(t, s)
	assert.Equal(t, content[:40], *s)
}

func TestLanguageForPath_CaseInsensitiveExtension(t *testing.T) {
	lang, ok := languageForPath("FILE.GO")
	require.True(t, ok)
	assert.Equal(t, findings.LangGo, lang)

	_, ok = languageForPath("README.md")
	assert.False(t, ok)
}
