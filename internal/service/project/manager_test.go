package project

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketidesk/internal/model"
	"ketidesk/internal/service/folder"
	"ketidesk/internal/service/projectsync"
	"ketidesk/internal/service/records"
	"ketidesk/internal/store"
)

type memJournal struct {
	mu   sync.Mutex
	logs []store.WorkbookLog
}

func (j *memJournal) CreateWorkbookLog(entry store.WorkbookLog) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry.ID = int64(len(j.logs) + 1)
	j.logs = append(j.logs, entry)
	return entry.ID, nil
}

func (j *memJournal) ListWorkbookLogs(limit int) ([]store.WorkbookLog, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]store.WorkbookLog, 0, len(j.logs))
	for i := len(j.logs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, j.logs[i])
	}
	return out, nil
}

type fixture struct {
	manager  *Manager
	journal  *memJournal
	workbook string
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	workbook := filepath.Join(dir, "总表.xlsx")
	root := filepath.Join(dir, "科研课题管理")

	engine := projectsync.NewEngine(records.NewStore("", nil), folder.NewStore(nil, nil), nil, nil)
	journal := &memJournal{}
	m, err := NewManager(workbook, root, engine, journal, nil, nil)
	require.NoError(t, err)

	_, err = m.Reload()
	require.NoError(t, err)
	return &fixture{manager: m, journal: journal, workbook: workbook, root: root}
}

func (f *fixture) create(t *testing.T, id, title, status, start string) MutationResult {
	t.Helper()
	res, err := f.manager.Create(model.Fields{
		model.ColProjectID: id,
		model.ColTitle:     title,
		model.ColStatus:    status,
		model.ColStartDate: start,
	}, "")
	require.NoError(t, err)
	require.Empty(t, res.SaveWarning)
	return res
}

func TestNewManagerValidatesArguments(t *testing.T) {
	engine := projectsync.NewEngine(records.NewStore("", nil), folder.NewStore(nil, nil), nil, nil)
	_, err := NewManager("", t.TempDir(), engine, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewManager("a.xlsx", "", engine, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewManager("a.xlsx", t.TempDir(), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestReloadCreatesMissingWorkbook(t *testing.T) {
	f := newFixture(t)

	assert.FileExists(t, f.workbook)
	assert.DirExists(t, f.root)
	assert.Empty(t, f.manager.Table())

	logs, err := f.manager.Logs(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, store.KindSave, logs[0].Kind)
	assert.Equal(t, store.KindLoad, logs[1].Kind)

	// 再次加载不再创建
	res, err := f.manager.Reload()
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestCreatePersistsAndCreatesFolder(t *testing.T) {
	f := newFixture(t)

	res := f.create(t, "P1", "桥梁检测", "在研", "2024-03-01")
	require.NotNil(t, res.Project)
	assert.True(t, res.Project.HasFolder)
	assert.Equal(t, filepath.Join(f.root, "2024-在研-P1-桥梁检测"), res.Project.Path)
	assert.DirExists(t, res.Project.Path)

	// 新会话从磁盘读回
	engine := projectsync.NewEngine(records.NewStore("", nil), folder.NewStore(nil, nil), nil, nil)
	other, err := NewManager(f.workbook, f.root, engine, nil, nil, nil)
	require.NoError(t, err)
	loaded, err := other.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.RecordCount)
	assert.Equal(t, 1, loaded.FolderCount)

	view, err := other.Get("P1")
	require.NoError(t, err)
	assert.Equal(t, "桥梁检测", view.Record.Title)
	assert.Equal(t, "2024", view.Record.StartYear)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "Foo", "", "")

	_, err := f.manager.Create(model.Fields{model.ColProjectID: "p1", model.ColTitle: "Bar"}, "")
	assert.ErrorIs(t, err, records.ErrDuplicateID)
	assert.Len(t, f.manager.Table(), 1)
}

func TestSetStatusRenamesFolder(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, "P1", "Foo", "在研", "2024-01-01")

	res, err := f.manager.SetStatus("P1", model.StatusClosed)
	require.NoError(t, err)
	require.NotNil(t, res.Project)
	assert.Equal(t, model.StatusClosed, res.Project.Record.Status)
	assert.Equal(t, filepath.Join(f.root, "2024-已结题-P1-Foo"), res.Project.Path)
	assert.NoDirExists(t, created.Project.Path)

	_, err = f.manager.SetStatus("P1", model.Status("暂停"))
	assert.ErrorIs(t, err, records.ErrInvalidStatus)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "Foo", "在研", "2024-01-01")

	res, err := f.manager.Update("P1", model.Fields{model.ColTitle: "Bar", model.ColExternalFund: "100"})
	require.NoError(t, err)
	assert.Equal(t, "Bar", res.Project.Record.Title)
	assert.Equal(t, 100.0, res.Project.Record.TotalBudget)
	assert.Equal(t, filepath.Join(f.root, "2024-在研-P1-Bar"), res.Project.Path)

	_, err = f.manager.Delete("P1")
	require.NoError(t, err)
	assert.Empty(t, f.manager.Table())
	assert.DirExists(t, filepath.Join(f.root, "2024-在研-P1-Bar"))

	_, err = f.manager.Delete("P1")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	f := newFixture(t)

	// 用目录占住总表路径，写回必然失败
	require.NoError(t, os.Remove(f.workbook))
	require.NoError(t, os.Mkdir(f.workbook, 0755))

	res, err := f.manager.Create(model.Fields{model.ColProjectID: "P1", model.ColTitle: "Foo"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SaveWarning)
	assert.Len(t, f.manager.Table(), 1)
	assert.NotEmpty(t, f.manager.Summary().LastSaveError)
	assert.Error(t, f.manager.SaveNow())

	logs, err := f.manager.Logs(1)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, logs[0].Status)
}

func TestListSearchesAllColumns(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "桥梁检测", "在研", "2024-01-01")
	f.create(t, "Q2", "隧道", "申报", "2023-01-01")

	assert.Len(t, f.manager.List("", ""), 2)
	assert.Len(t, f.manager.List("桥梁", ""), 1)
	assert.Len(t, f.manager.List("q2", ""), 1)
	assert.Len(t, f.manager.List("申报", model.ColStatus), 1)
	assert.Empty(t, f.manager.List("x", "不存在的列"))

	stats, err := f.manager.Stats(model.ColStatus)
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	_, err = f.manager.Stats("不存在的列")
	assert.ErrorIs(t, err, records.ErrUnknownColumn)
}

func TestSyncRecreatesRemovedFolder(t *testing.T) {
	f := newFixture(t)
	res := f.create(t, "P1", "Foo", "在研", "2024-01-01")
	require.NoError(t, os.RemoveAll(res.Project.Path))

	_, err := f.manager.OpenFolder("P1")
	assert.ErrorIs(t, err, ErrFolderMissing)
	_, err = f.manager.OpenFolder("nope")
	assert.ErrorIs(t, err, records.ErrNotFound)

	result := f.manager.Sync()
	assert.Equal(t, 1, result.FolderCount)
	assert.Empty(t, result.Missing)
	assert.DirExists(t, res.Project.Path)
}

func TestHandleExternalChange(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "Foo", "在研", "2024-01-01")

	// 外部程序写入了一条新记录
	table := f.manager.Table()
	table = append(table, model.ProjectRecord{ProjectID: "EXT", Title: "外部", Status: model.StatusProposed})
	require.NoError(t, records.NewStore("", nil).Persist(table, f.workbook))

	// 紧随自身保存：忽略
	f.manager.HandleExternalChange()
	assert.Len(t, f.manager.Table(), 1)

	f.manager.mu.Lock()
	f.manager.lastWrite = time.Now().Add(-time.Minute)
	f.manager.mu.Unlock()

	f.manager.HandleExternalChange()
	assert.Len(t, f.manager.Table(), 2)
	view, err := f.manager.Get("EXT")
	require.NoError(t, err)
	assert.True(t, view.HasFolder)
}

func TestExternalChangeKeepsUnsavedEdits(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "Foo", "在研", "2024-01-01")

	// 总表路径被占用，P2 只存在于内存
	require.NoError(t, os.Remove(f.workbook))
	require.NoError(t, os.Mkdir(f.workbook, 0755))
	res, err := f.manager.Create(model.Fields{model.ColProjectID: "P2", model.ColTitle: "Bar"}, "")
	require.NoError(t, err)
	require.NotEmpty(t, res.SaveWarning)

	// 外部程序重新写出只含 P1 的总表
	require.NoError(t, os.Remove(f.workbook))
	external := model.Table{{ProjectID: "P1", Title: "Foo", Status: model.StatusActive}}
	require.NoError(t, records.NewStore("", nil).Persist(external, f.workbook))

	f.manager.mu.Lock()
	f.manager.lastWrite = time.Now().Add(-time.Minute)
	f.manager.mu.Unlock()

	f.manager.HandleExternalChange()
	f.manager.HandleExternalChange()
	assert.Len(t, f.manager.Table(), 2)
	_, err = f.manager.Get("P2")
	require.NoError(t, err)
	skipped := 0
	for _, d := range f.manager.Diagnostics() {
		if strings.Contains(d.Message, "跳过重新加载") {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)

	// 保存成功后内存内容写回总表，之后的外部修改照常重新加载
	require.NoError(t, f.manager.SaveNow())
	loaded, _ := records.NewStore("", nil).Load(f.workbook)
	assert.Len(t, loaded, 2)

	require.NoError(t, records.NewStore("", nil).Persist(external, f.workbook))
	f.manager.mu.Lock()
	f.manager.lastWrite = time.Now().Add(-time.Minute)
	f.manager.mu.Unlock()

	f.manager.HandleExternalChange()
	assert.Len(t, f.manager.Table(), 1)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", "Foo", "", "")

	s := f.manager.Summary()
	assert.Len(t, s.SessionID, 8)
	assert.Equal(t, f.workbook, s.Workbook)
	assert.Equal(t, records.DefaultSheet, s.Sheet)
	assert.Equal(t, 1, s.RecordCount)
	assert.False(t, s.SavedAt.IsZero())
	// 首次加载时总表不存在，会留下一条提示
	assert.Equal(t, len(f.manager.Diagnostics()), s.DiagnosticCount)
	assert.NotZero(t, s.DiagnosticCount)
}

func TestCheckIsReadOnly(t *testing.T) {
	f := newFixture(t)
	res := f.create(t, "P1", "Foo", "在研", "2024-01-01")
	require.NoError(t, os.RemoveAll(res.Project.Path))

	count, diags := f.manager.Check()
	assert.Equal(t, 1, count)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "P1")
	assert.NoDirExists(t, res.Project.Path)
}

func TestBrowseReadsWorkbookWithoutSync(t *testing.T) {
	f := newFixture(t)
	res := f.create(t, "P1", "桥梁检测", "在研", "2024-01-01")

	table := f.manager.Table()
	table = append(table, model.ProjectRecord{ProjectID: "EXT", Title: "外部", Status: model.StatusProposed, StartYear: "2023"})
	require.NoError(t, records.NewStore("", nil).Persist(table, f.workbook))

	views, _ := f.manager.Browse("", "")
	require.Len(t, views, 2)
	assert.Equal(t, res.Project.Path, views[0].Path)
	assert.True(t, views[0].HasFolder)
	assert.False(t, views[1].HasFolder)

	views, _ = f.manager.Browse("外部", model.ColTitle)
	require.Len(t, views, 1)

	// 内存状态不变，也没有补建目录
	assert.Len(t, f.manager.Table(), 1)
	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
