package folder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ketidesk/internal/logger"
	"ketidesk/internal/metrics"
	"ketidesk/internal/model"
	"ketidesk/internal/util"
)

// Store 课题目录管理：创建、定位、重命名、打开。除文件系统本身外不持有状态
type Store struct {
	log     logger.Logger
	metrics *metrics.Metrics
	opener  func(path string) error
}

// NewStore 创建目录管理器；m 可为 nil
func NewStore(log logger.Logger, m *metrics.Metrics) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		log:     log,
		metrics: m,
		opener:  util.OpenFolder,
	}
}

// 便于测试替换
var (
	osMkdirAll = func(path string) error { return os.MkdirAll(path, 0755) }
	osRename   = os.Rename
)

// EnsureProjectDirectory 确保课题目录及其标准子目录存在（幂等），返回目录路径
//
// overridePath 非空且其上级目录存在时，课题目录建在 overridePath 下，否则建在 baseDir 下。
func (s *Store) EnsureProjectDirectory(baseDir, projectID, title string, status model.Status, year, overridePath string) (string, error) {
	parent := baseDir
	if overridePath != "" && isDir(filepath.Dir(overridePath)) {
		parent = overridePath
	}
	if parent == "" {
		return "", errors.New("base dir is required")
	}

	projectPath := filepath.Join(parent, DirectoryName(year, status, projectID, title))

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return "", fmt.Errorf("failed to create project dir %s: path exists and is not a directory", projectPath)
	} else if err == nil {
		s.log.Debug("课题目录已存在，检查子目录: %s", projectPath)
	} else {
		if err := osMkdirAll(projectPath); err != nil {
			return "", fmt.Errorf("failed to create project dir %s: %w", projectPath, err)
		}
		s.metrics.FolderCreated()
		s.log.Info("创建课题主目录: %s", projectPath)
	}

	created := 0
	for _, parts := range RelativePaths() {
		sub := filepath.Join(append([]string{projectPath}, parts...)...)
		if isDir(sub) {
			continue
		}
		if err := osMkdirAll(sub); err != nil {
			return "", fmt.Errorf("failed to create subfolder %s: %w", sub, err)
		}
		created++
	}
	if created > 0 {
		s.log.Info("已在 %s 中补全 %d 个标准子目录", projectPath, created)
	}

	return projectPath, nil
}

// RenameProjectDirectory 按新状态重命名课题目录，内容保持不变
//
// 原目录不存在、名称未变化、目标已存在时不做任何操作，返回 oldPath 且 error 为 nil；
// 仅在系统调用失败时返回 error，此时仍返回 oldPath，调用方缓存的路径保持有效。
func (s *Store) RenameProjectDirectory(oldPath, projectID, title string, newStatus model.Status, year string) (string, error) {
	if oldPath == "" || !isDir(oldPath) {
		s.log.Warn("原课题目录不存在，跳过重命名: %q", oldPath)
		s.metrics.FolderRenamed(metrics.RenameNoop)
		return oldPath, nil
	}

	newPath := filepath.Join(filepath.Dir(oldPath), DirectoryName(year, newStatus, projectID, title))
	if filepath.Clean(newPath) == filepath.Clean(oldPath) {
		s.log.Debug("目录名称未变化，无需重命名: %s", oldPath)
		s.metrics.FolderRenamed(metrics.RenameNoop)
		return oldPath, nil
	}

	if _, err := os.Stat(newPath); err == nil {
		s.log.Warn("目标目录已存在，放弃重命名: %s -> %s", oldPath, newPath)
		s.metrics.FolderRenamed(metrics.RenameConflict)
		return oldPath, nil
	}

	if err := osRename(oldPath, newPath); err != nil {
		s.metrics.FolderRenamed(metrics.RenameFailed)
		return oldPath, fmt.Errorf("failed to rename %s to %s: %w", oldPath, newPath, err)
	}

	s.metrics.FolderRenamed(metrics.RenameRenamed)
	s.log.Info("目录已重命名: %s -> %s", oldPath, newPath)
	return newPath, nil
}

// Locate 在 baseDir 下查找课题目录（任一合法状态命名均可），返回路径及目录名中的状态
func (s *Store) Locate(baseDir, projectID, title, year string) (string, model.Status, bool) {
	if baseDir == "" {
		return "", "", false
	}
	for _, st := range model.Statuses {
		p := filepath.Join(baseDir, DirectoryName(year, st, projectID, title))
		if isDir(p) {
			return p, st, true
		}
	}
	return "", "", false
}

// Open 在系统文件管理器中打开目录；路径无效或系统调用失败时返回 false
func (s *Store) Open(path string) bool {
	if path == "" || !isDir(path) {
		s.log.Warn("目录不存在或不是有效目录: %q", path)
		return false
	}
	if err := s.opener(path); err != nil {
		s.log.Error("打开目录 %s 失败: %v", path, err)
		return false
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
