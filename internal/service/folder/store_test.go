package folder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketidesk/internal/model"
)

func newTestStore() *Store {
	return NewStore(nil, nil)
}

func assertSkeleton(t *testing.T, projectPath string) {
	t.Helper()
	for _, parts := range RelativePaths() {
		p := filepath.Join(append([]string{projectPath}, parts...)...)
		assert.DirExists(t, p)
	}
}

func TestEnsureProjectDirectory(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	p, err := s.EnsureProjectDirectory(base, "P1", "桥梁检测", model.StatusActive, "2024", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "2024-在研-P1-桥梁检测"), p)
	assertSkeleton(t, p)

	// 已有文件不受影响，缺失子目录被补全
	marker := filepath.Join(p, "01_申报", "申报书.docx")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))
	require.NoError(t, os.RemoveAll(filepath.Join(p, "03_过程管理", "02_中期")))

	again, err := s.EnsureProjectDirectory(base, "P1", "桥梁检测", model.StatusActive, "2024", "")
	require.NoError(t, err)
	assert.Equal(t, p, again)
	assert.FileExists(t, marker)
	assertSkeleton(t, p)
}

func TestEnsureProjectDirectoryOverridePath(t *testing.T) {
	base := t.TempDir()
	custom := filepath.Join(t.TempDir(), "自定义")
	s := newTestStore()

	p, err := s.EnsureProjectDirectory(base, "P2", "隧道", model.StatusProposed, "2023", custom)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(custom, "2023-申报-P2-隧道"), p)

	// 上级目录不存在时回落到 baseDir
	missing := filepath.Join(t.TempDir(), "no", "such", "dir")
	p, err = s.EnsureProjectDirectory(base, "P3", "隧道", model.StatusProposed, "2023", missing)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "2023-申报-P3-隧道"), p)
}

func TestEnsureProjectDirectoryFailure(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	blocker := filepath.Join(base, "2024-在研-P1-Foo")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))

	_, err := s.EnsureProjectDirectory(base, "P1", "Foo", model.StatusActive, "2024", "")
	assert.Error(t, err)

	_, err = s.EnsureProjectDirectory("", "P1", "Foo", model.StatusActive, "2024", "")
	assert.Error(t, err)
}

func TestRenameProjectDirectory(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	oldPath, err := s.EnsureProjectDirectory(base, "P1", "Foo", model.StatusActive, "2024", "")
	require.NoError(t, err)
	require.Equal(t, "2024-在研-P1-Foo", filepath.Base(oldPath))

	newPath, err := s.RenameProjectDirectory(oldPath, "P1", "Foo", model.StatusClosed, "2024")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "2024-已结题-P1-Foo"), newPath)
	assert.DirExists(t, newPath)
	assert.NoDirExists(t, oldPath)
	assertSkeleton(t, newPath)

	// 再次以相同状态调用：幂等
	same, err := s.RenameProjectDirectory(newPath, "P1", "Foo", model.StatusClosed, "2024")
	require.NoError(t, err)
	assert.Equal(t, newPath, same)
	assert.DirExists(t, newPath)
}

func TestRenameProjectDirectoryNoops(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	missing := filepath.Join(base, "2024-在研-P9-Gone")
	got, err := s.RenameProjectDirectory(missing, "P9", "Gone", model.StatusClosed, "2024")
	require.NoError(t, err)
	assert.Equal(t, missing, got)

	got, err = s.RenameProjectDirectory("", "P9", "Gone", model.StatusClosed, "2024")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestRenameProjectDirectoryConflict(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	oldPath, err := s.EnsureProjectDirectory(base, "P1", "Foo", model.StatusActive, "2024", "")
	require.NoError(t, err)
	target := filepath.Join(base, "2024-已结题-P1-Foo")
	require.NoError(t, os.Mkdir(target, 0755))

	got, err := s.RenameProjectDirectory(oldPath, "P1", "Foo", model.StatusClosed, "2024")
	require.NoError(t, err)
	assert.Equal(t, oldPath, got)
	assert.DirExists(t, oldPath)
}

func TestRenameProjectDirectoryOSFailure(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	oldPath, err := s.EnsureProjectDirectory(base, "P1", "Foo", model.StatusActive, "2024", "")
	require.NoError(t, err)

	orig := osRename
	osRename = func(string, string) error { return errors.New("access denied") }
	t.Cleanup(func() { osRename = orig })

	got, err := s.RenameProjectDirectory(oldPath, "P1", "Foo", model.StatusClosed, "2024")
	assert.Error(t, err)
	assert.Equal(t, oldPath, got)
}

func TestLocate(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	_, _, ok := s.Locate(base, "P1", "Foo", "2024")
	assert.False(t, ok)

	p, err := s.EnsureProjectDirectory(base, "P1", "Foo", model.StatusDelayed, "2024", "")
	require.NoError(t, err)

	found, st, ok := s.Locate(base, "P1", "Foo", "2024")
	require.True(t, ok)
	assert.Equal(t, p, found)
	assert.Equal(t, model.StatusDelayed, st)
}

func TestOpen(t *testing.T) {
	base := t.TempDir()
	s := newTestStore()

	var opened string
	s.opener = func(path string) error {
		opened = path
		return nil
	}

	assert.False(t, s.Open(""))
	assert.False(t, s.Open(filepath.Join(base, "missing")))

	file := filepath.Join(base, "a.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.False(t, s.Open(file))

	assert.True(t, s.Open(base))
	assert.Equal(t, base, opened)

	s.opener = func(string) error { return errors.New("no xdg-open") }
	assert.False(t, s.Open(base))
}
