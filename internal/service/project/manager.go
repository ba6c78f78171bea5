package project

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ketidesk/internal/logger"
	"ketidesk/internal/metrics"
	"ketidesk/internal/model"
	"ketidesk/internal/service/projectsync"
	"ketidesk/internal/service/records"
	"ketidesk/internal/store"
)

// 自身保存后一段时间内的文件事件视为自己写入，不触发重新加载
const selfWriteWindow = 2 * time.Second

// ErrFolderMissing 课题目录不存在（尚未同步或已被移走）
var ErrFolderMissing = errors.New("project folder not found")

// Journal 总表读写日志
type Journal interface {
	CreateWorkbookLog(entry store.WorkbookLog) (int64, error)
	ListWorkbookLogs(limit int) ([]store.WorkbookLog, error)
}

// Manager 会话管理器：持有内存中的总表与目录缓存，串行化所有读写
//
// 每次修改后立即写回总表；写回失败只作为提示返回，内存中的修改保留，
// 用户关闭占用文件的程序后可再次保存。
type Manager struct {
	workbook     string
	projectsRoot string

	engine  *projectsync.Engine
	journal Journal
	log     logger.Logger
	metrics *metrics.Metrics

	sessionID string

	mu          sync.Mutex
	table       model.Table
	cache       projectsync.PathCache
	diags       records.Diagnostics
	loadedAt    time.Time
	savedAt     time.Time
	lastSaveErr string
	lastWrite   time.Time
	// dirty 内存中有尚未写回总表的修改，仅成功保存后清除
	dirty bool
}

// NewManager 创建会话管理器；journal、log、m 均可为 nil。创建后需调用 Reload 加载数据
func NewManager(workbook, projectsRoot string, engine *projectsync.Engine, journal Journal, log logger.Logger, m *metrics.Metrics) (*Manager, error) {
	if err := requireNonEmptyString(workbook, "workbook path is required"); err != nil {
		return nil, err
	}
	if err := requireNonEmptyString(projectsRoot, "projects root is required"); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := ensureDir(projectsRoot); err != nil {
		return nil, fmt.Errorf("failed to create projects root: %w", err)
	}

	return &Manager{
		workbook:     workbook,
		projectsRoot: projectsRoot,
		engine:       engine,
		journal:      journal,
		log:          log,
		metrics:      m,
		sessionID:    uuid.New().String()[:8],
		cache:        projectsync.PathCache{},
	}, nil
}

// Reload 重新读取总表并做一次全量目录同步；总表不存在时创建一个只有表头的空表
func (m *Manager) Reload() (LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *Manager) reloadLocked() (LoadResult, error) {
	existed := fileExists(m.workbook)

	table, diags := m.engine.Records().Load(m.workbook)
	m.table = table
	m.diags = diags
	m.loadedAt = time.Now()
	m.journalLocked(store.KindLoad, len(table), len(diags), nil)

	for _, d := range diags {
		m.log.Warn("加载总表: %s", d.String())
	}

	result := LoadResult{RecordCount: len(table), Diagnostics: diags}
	if !existed {
		if err := m.saveLocked(); err != nil {
			return result, err
		}
		result.Created = true
		m.log.Info("总表不存在，已创建空表: %s", m.workbook)
	}

	m.cache = m.engine.SynchronizeAll(m.table, m.projectsRoot, nil)
	result.FolderCount = len(m.cache)
	m.log.Info("已加载 %d 条课题记录，%d 个课题目录", len(m.table), len(m.cache))
	return result, nil
}

// HandleExternalChange 总表被外部程序修改时调用；紧随自身保存的事件会被忽略，
// 内存中有未写回的修改时也不重新加载，以免丢失这些修改
func (m *Manager) HandleExternalChange() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastWrite) < selfWriteWindow {
		m.log.Debug("忽略自身保存引起的总表变更事件")
		return
	}
	if m.dirty {
		m.log.Warn("检测到总表被外部修改，但内存中有未写回的修改（%s），暂不重新加载；保存成功后将以内存内容为准", m.lastSaveErr)
		skipped := records.Diagnostic{Message: "总表已被外部修改，但存在未保存的修改，已跳过重新加载"}
		if n := len(m.diags); n == 0 || m.diags[n-1] != skipped {
			m.diags = append(m.diags, skipped)
		}
		return
	}
	m.log.Info("检测到总表被外部修改，重新加载")
	if _, err := m.reloadLocked(); err != nil {
		m.log.Error("重新加载总表失败: %v", err)
	}
}

// Check 只读检查：重新读取总表，报告加载提示与缺少目录的记录；不修改内存状态与磁盘
func (m *Manager) Check() (int, records.Diagnostics) {
	table, diags := m.engine.Records().Load(m.workbook)
	for _, rec := range table {
		if _, _, ok := m.engine.Folders().Locate(m.projectsRoot, rec.ProjectID, rec.Title, rec.StartYear); !ok {
			diags = append(diags, records.Diagnostic{
				Column:  model.ColProjectID,
				Message: fmt.Sprintf("课题 %s 尚无对应目录", rec.ProjectID),
			})
		}
	}
	return len(table), diags
}

// List 查询课题；column 为空时在所有列中查找
func (m *Manager) List(query, column string) []ProjectView {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.filter(m.table, query, column)
	views := make([]ProjectView, 0, len(matched))
	for _, rec := range matched {
		views = append(views, m.viewLocked(rec))
	}
	return views
}

// Browse 只读查询：直接读取磁盘上的总表并查找已有目录，不建表、不建目录、不改内存状态
func (m *Manager) Browse(query, column string) ([]ProjectView, records.Diagnostics) {
	table, diags := m.engine.Records().Load(m.workbook)
	matched := m.filter(table, query, column)

	views := make([]ProjectView, 0, len(matched))
	for _, rec := range matched {
		path, _, ok := m.engine.Folders().Locate(m.projectsRoot, rec.ProjectID, rec.Title, rec.StartYear)
		views = append(views, ProjectView{Record: rec, Path: path, HasFolder: ok})
	}
	return views, diags
}

func (m *Manager) filter(t model.Table, query, column string) model.Table {
	if column == "" {
		return findAnyColumn(t, query)
	}
	return m.engine.Records().Find(t, query, column)
}

// Get 按课题编号取记录
func (m *Manager) Get(projectID string) (ProjectView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.table.Get(projectID)
	if !ok {
		return ProjectView{}, fmt.Errorf("%w: %s", records.ErrNotFound, projectID)
	}
	return m.viewLocked(rec), nil
}

// Create 新建课题：先建目录后写记录；overridePath 非空时目录建在该路径下
func (m *Manager) Create(fields model.Fields, overridePath string) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, path, diags, err := m.engine.CreateWithFolder(m.table, fields, m.projectsRoot, overridePath)
	if err != nil {
		return MutationResult{}, err
	}
	m.table = next

	id := strings.TrimSpace(fields[model.ColProjectID])
	cache := m.cache.Clone()
	cache[id] = path
	m.cache = cache
	m.metrics.SetProjects(len(m.table))

	return m.afterMutationLocked(id, diags), nil
}

// Update 修改课题字段
func (m *Manager) Update(projectID string, fields model.Fields) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, cache, diags, err := m.engine.Update(m.table, projectID, fields, m.cache)
	if err != nil {
		return MutationResult{}, err
	}
	m.table, m.cache = next, cache
	return m.afterMutationLocked(projectID, diags), nil
}

// SetStatus 修改课题状态，目录随之改名
func (m *Manager) SetStatus(projectID string, status model.Status) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, cache, err := m.engine.ApplyStatusChange(m.table, projectID, status, m.cache)
	if err != nil {
		return MutationResult{}, err
	}
	m.table, m.cache = next, cache
	return m.afterMutationLocked(projectID, nil), nil
}

// Delete 删除课题记录，目录保留
func (m *Manager) Delete(projectID string) (MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, cache, err := m.engine.Delete(m.table, projectID, m.cache)
	if err != nil {
		return MutationResult{}, err
	}
	m.table, m.cache = next, cache
	m.metrics.SetProjects(len(m.table))
	return m.afterMutationLocked("", nil), nil
}

// OpenFolder 在系统文件管理器中打开课题目录
func (m *Manager) OpenFolder(projectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.table.Get(projectID); !ok {
		return "", fmt.Errorf("%w: %s", records.ErrNotFound, projectID)
	}
	path, ok := m.engine.ResolvePath(projectID, m.cache)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFolderMissing, projectID)
	}
	if !m.engine.Folders().Open(path) {
		return path, fmt.Errorf("failed to open folder %s", path)
	}
	return path, nil
}

// Sync 全量同步：为缺少目录的记录补建目录
func (m *Manager) Sync() SyncResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache = m.engine.SynchronizeAll(m.table, m.projectsRoot, m.cache)

	missing := make([]string, 0)
	for _, rec := range m.table {
		if _, ok := m.cache[rec.ProjectID]; !ok {
			missing = append(missing, rec.ProjectID)
		}
	}
	return SyncResult{RecordCount: len(m.table), FolderCount: len(m.cache), Missing: missing}
}

// SaveNow 立即写回总表
func (m *Manager) SaveNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// Stats 按维度统计
func (m *Manager) Stats(columns ...string) ([]records.GroupCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return records.CountBy(m.table, columns...)
}

// Diagnostics 最近一次加载产生的提示
func (m *Manager) Diagnostics() records.Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(records.Diagnostics, len(m.diags))
	copy(out, m.diags)
	return out
}

// Logs 最近的总表读写日志
func (m *Manager) Logs(limit int) ([]store.WorkbookLog, error) {
	if m.journal == nil {
		return []store.WorkbookLog{}, nil
	}
	return m.journal.ListWorkbookLogs(limit)
}

// Summary 会话概况
func (m *Manager) Summary() SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return SessionSummary{
		SessionID:       m.sessionID,
		Workbook:        m.workbook,
		Sheet:           m.engine.Records().Sheet(),
		ProjectsRoot:    m.projectsRoot,
		RecordCount:     len(m.table),
		DiagnosticCount: len(m.diags),
		LoadedAt:        m.loadedAt,
		SavedAt:         m.savedAt,
		LastSaveError:   m.lastSaveErr,
	}
}

// Table 返回当前总表的副本
func (m *Manager) Table() model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Clone()
}

func (m *Manager) afterMutationLocked(projectID string, diags records.Diagnostics) MutationResult {
	result := MutationResult{Diagnostics: diags}
	if result.Diagnostics == nil {
		result.Diagnostics = records.Diagnostics{}
	}
	if projectID != "" {
		if rec, ok := m.table.Get(projectID); ok {
			view := m.viewLocked(rec)
			result.Project = &view
		}
	}
	if err := m.saveLocked(); err != nil {
		result.SaveWarning = fmt.Sprintf("修改已生效，但写回总表失败（请关闭正在打开该文件的程序后重新保存）: %v", err)
	}
	return result
}

func (m *Manager) saveLocked() error {
	// 先记录写入时间，避免监听器在保存过程中触发重新加载
	m.lastWrite = time.Now()
	err := m.engine.Records().Persist(m.table, m.workbook)
	m.metrics.WorkbookSaved(err == nil)
	m.journalLocked(store.KindSave, len(m.table), 0, err)
	if err != nil {
		m.dirty = true
		m.lastSaveErr = err.Error()
		m.log.Warn("写回总表失败，内存中的修改已保留: %v", err)
		return err
	}
	m.lastWrite = time.Now()
	m.savedAt = m.lastWrite
	m.lastSaveErr = ""
	m.dirty = false
	return nil
}

func (m *Manager) journalLocked(kind string, rows, diags int, err error) {
	if m.journal == nil {
		return
	}
	entry := store.WorkbookLog{
		Kind:            kind,
		FilePath:        m.workbook,
		RowCount:        rows,
		DiagnosticCount: diags,
		Status:          store.StatusSuccess,
	}
	if err != nil {
		entry.Status = store.StatusFailed
		entry.ErrorMessage = err.Error()
	}
	if _, jerr := m.journal.CreateWorkbookLog(entry); jerr != nil {
		m.log.Warn("写入总表日志失败: %v", jerr)
	}
}

func (m *Manager) viewLocked(rec model.ProjectRecord) ProjectView {
	path, ok := m.engine.ResolvePath(rec.ProjectID, m.cache)
	return ProjectView{Record: rec, Path: path, HasFolder: ok}
}

func findAnyColumn(t model.Table, query string) model.Table {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return t
	}
	out := make(model.Table, 0)
	for i := range t {
		for _, col := range model.Columns {
			v, _ := t[i].Text(col)
			if strings.Contains(strings.ToLower(v), q) {
				out = append(out, t[i])
				break
			}
		}
	}
	return out
}
