package projectsync

import (
	"fmt"
	"os"
	"strings"

	"ketidesk/internal/logger"
	"ketidesk/internal/metrics"
	"ketidesk/internal/model"
	"ketidesk/internal/service/folder"
	"ketidesk/internal/service/records"
)

// PathCache 课题编号 -> 课题目录路径，仅在一次运行内有效，不持久化
type PathCache map[string]string

// Clone 复制缓存
func (c PathCache) Clone() PathCache {
	out := make(PathCache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Engine 协调总表记录与课题目录，保证二者一致
//
// 约定的先后顺序：新建时先目录后记录（目录失败则不写记录）；
// 状态变更时先记录后目录（重命名失败时保留旧路径，下次全量同步再对齐）。
type Engine struct {
	records *records.Store
	folders *folder.Store
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewEngine 创建同步引擎；m 可为 nil
func NewEngine(rs *records.Store, fs *folder.Store, log logger.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{records: rs, folders: fs, log: log, metrics: m}
}

// Records 返回总表存储
func (e *Engine) Records() *records.Store {
	return e.records
}

// Folders 返回目录存储
func (e *Engine) Folders() *folder.Store {
	return e.folders
}

// SynchronizeAll 确保每条记录都有对应目录，返回新的路径缓存
//
// 缓存中仍然存在的目录直接沿用；否则先按任意状态命名查找已有目录（状态不一致时改名），
// 找不到再新建。单条记录失败只记录日志，不影响其余记录。
func (e *Engine) SynchronizeAll(t model.Table, baseDir string, cache PathCache) PathCache {
	next := cache.Clone()
	failed := 0
	seen := make(map[string]bool, len(t))

	for i := range t {
		rec := &t[i]
		id := rec.ProjectID

		if seen[id] {
			// 重复编号的记录也要有自己的目录，但缓存只指向第一条
			if !e.ensureDuplicate(rec, baseDir, i) {
				failed++
			}
			continue
		}
		seen[id] = true

		if p, ok := next[id]; ok && isDir(p) {
			continue
		}

		if p, st, ok := e.folders.Locate(baseDir, id, rec.Title, rec.StartYear); ok {
			if st != rec.Status.OrDefault() {
				renamed, err := e.folders.RenameProjectDirectory(p, id, rec.Title, rec.Status, rec.StartYear)
				if err != nil {
					e.log.Warn("课题 %s 的目录状态与记录不一致，重命名失败: %v", id, err)
				}
				p = renamed
			}
			next[id] = p
			continue
		}

		p, err := e.folders.EnsureProjectDirectory(baseDir, id, rec.Title, rec.Status, rec.StartYear, "")
		if err != nil {
			failed++
			e.metrics.SyncFailed()
			e.log.Error("无法为课题 %q (编号: %s) 创建目录: %v", rec.Title, id, err)
			delete(next, id)
			continue
		}
		next[id] = p
	}

	e.metrics.SetProjects(len(t))
	if failed > 0 {
		e.log.Warn("同步完成：%d 条记录，%d 条目录创建失败", len(t), failed)
	} else {
		e.log.Info("同步完成：%d 条记录均已有对应目录", len(t))
	}
	return next
}

func (e *Engine) ensureDuplicate(rec *model.ProjectRecord, baseDir string, index int) bool {
	if _, _, ok := e.folders.Locate(baseDir, rec.ProjectID, rec.Title, rec.StartYear); ok {
		e.log.Warn("课题编号 %s 重复（第 %d 条记录），目录已存在，打开与改名只作用于第一条记录", rec.ProjectID, index+1)
		return true
	}
	p, err := e.folders.EnsureProjectDirectory(baseDir, rec.ProjectID, rec.Title, rec.Status, rec.StartYear, "")
	if err != nil {
		e.metrics.SyncFailed()
		e.log.Error("无法为重复编号的课题 %q (编号: %s) 创建目录: %v", rec.Title, rec.ProjectID, err)
		return false
	}
	e.log.Warn("课题编号 %s 重复（第 %d 条记录），已单独创建目录 %s，打开与改名只作用于第一条记录", rec.ProjectID, index+1, p)
	return true
}

// CreateWithFolder 新建课题：先校验，再建目录，最后写入记录
func (e *Engine) CreateWithFolder(t model.Table, fields model.Fields, baseDir, overridePath string) (model.Table, string, records.Diagnostics, error) {
	id := strings.TrimSpace(fields[model.ColProjectID])
	if err := e.records.CheckInsert(t, id); err != nil {
		return t, "", nil, err
	}
	status := model.Status(strings.TrimSpace(fields[model.ColStatus]))
	if status != "" && !status.Valid() {
		return t, "", nil, fmt.Errorf("%w: %s", records.ErrInvalidStatus, status)
	}

	title := strings.TrimSpace(fields[model.ColTitle])
	startDate, _ := records.ParseDate(fields[model.ColStartDate])
	year := records.YearOf(startDate)

	p, err := e.folders.EnsureProjectDirectory(baseDir, id, title, status, year, overridePath)
	if err != nil {
		e.log.Error("未能为课题 %q 创建目录，添加失败: %v", title, err)
		return t, "", nil, err
	}

	next, diags, err := e.records.Insert(t, fields)
	if err != nil {
		return t, "", nil, err
	}
	return next, p, diags, nil
}

// ApplyStatusChange 修改状态，状态确有变化时按新状态重命名目录
func (e *Engine) ApplyStatusChange(t model.Table, projectID string, status model.Status, cache PathCache) (model.Table, PathCache, error) {
	before, ok := t.Get(projectID)
	if !ok {
		return t, cache, fmt.Errorf("%w: %s", records.ErrNotFound, projectID)
	}

	next, err := e.records.SetStatus(t, projectID, status)
	if err != nil {
		return t, cache, err
	}
	if before.Status == status {
		return next, cache, nil
	}

	nextCache := cache.Clone()
	oldPath, ok := e.ResolvePath(before.ProjectID, cache)
	if !ok {
		e.log.Warn("课题 %s 没有可用的目录缓存，状态已更新，目录将在下次同步时对齐", projectID)
		return next, nextCache, nil
	}

	newPath, err := e.folders.RenameProjectDirectory(oldPath, before.ProjectID, before.Title, status, before.StartYear)
	if err != nil {
		e.log.Error("课题 %s 目录重命名失败，保留原路径: %v", projectID, err)
	}
	nextCache[before.ProjectID] = newPath
	return next, nextCache, nil
}

// Update 修改课题字段；状态变化走 ApplyStatusChange，名称或年份变化时目录随之改名
func (e *Engine) Update(t model.Table, projectID string, fields model.Fields, cache PathCache) (model.Table, PathCache, records.Diagnostics, error) {
	rest := make(model.Fields, len(fields))
	for k, v := range fields {
		rest[k] = v
	}
	rawStatus, hasStatus := rest[model.ColStatus]
	delete(rest, model.ColStatus)

	next, diags, err := e.records.Update(t, projectID, rest)
	if err != nil {
		return t, cache, nil, err
	}

	nextCache := cache
	if hasStatus {
		st := model.Status(strings.TrimSpace(rawStatus))
		if st.Valid() {
			next, nextCache, err = e.ApplyStatusChange(next, projectID, st, nextCache)
			if err != nil {
				return t, cache, diags, err
			}
		} else {
			diags = append(diags, records.Diagnostic{Column: model.ColStatus, Message: fmt.Sprintf("状态 %q 不是合法取值，已忽略", rawStatus)})
		}
	}

	return next, e.realign(next, projectID, nextCache), diags, nil
}

// Delete 删除记录并移除缓存；课题目录保留在磁盘上
func (e *Engine) Delete(t model.Table, projectID string, cache PathCache) (model.Table, PathCache, error) {
	rec, ok := t.Get(projectID)
	next, err := e.records.Delete(t, projectID)
	if err != nil {
		return t, cache, err
	}
	nextCache := cache.Clone()
	if ok {
		if p, found := nextCache[rec.ProjectID]; found {
			e.log.Info("课题 %s 的记录已删除，目录保留: %s", projectID, p)
		}
		delete(nextCache, rec.ProjectID)
	}
	return next, nextCache, nil
}

// ResolvePath 从缓存取课题目录，并确认目录仍然存在
func (e *Engine) ResolvePath(projectID string, cache PathCache) (string, bool) {
	p, ok := cache[strings.TrimSpace(projectID)]
	if !ok || !isDir(p) {
		return "", false
	}
	return p, true
}

// realign 让目录名与记录当前的名称、状态、年份保持一致
func (e *Engine) realign(t model.Table, projectID string, cache PathCache) PathCache {
	rec, ok := t.Get(projectID)
	if !ok {
		return cache
	}
	p, ok := e.ResolvePath(rec.ProjectID, cache)
	if !ok {
		return cache
	}
	newPath, err := e.folders.RenameProjectDirectory(p, rec.ProjectID, rec.Title, rec.Status, rec.StartYear)
	if err != nil {
		e.log.Error("课题 %s 目录重命名失败: %v", projectID, err)
	}
	if newPath == p {
		return cache
	}
	next := cache.Clone()
	next[rec.ProjectID] = newPath
	return next
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
