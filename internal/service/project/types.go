package project

import (
	"time"

	"ketidesk/internal/model"
	"ketidesk/internal/service/records"
)

// ProjectView 课题记录及其目录
type ProjectView struct {
	Record    model.ProjectRecord `json:"record"`
	Path      string              `json:"path"`
	HasFolder bool                `json:"hasFolder"`
}

// MutationResult 修改类操作的返回
//
// SaveWarning 非空表示内存中的修改已生效，但写回总表失败（例如文件被 Excel 占用）。
type MutationResult struct {
	Project     *ProjectView        `json:"project,omitempty"`
	Diagnostics records.Diagnostics `json:"diagnostics"`
	SaveWarning string              `json:"saveWarning,omitempty"`
}

// LoadResult 一次加载的结果
type LoadResult struct {
	RecordCount int                 `json:"recordCount"`
	FolderCount int                 `json:"folderCount"`
	Diagnostics records.Diagnostics `json:"diagnostics"`
	Created     bool                `json:"created"`
}

// SyncResult 一次全量同步的结果
type SyncResult struct {
	RecordCount int      `json:"recordCount"`
	FolderCount int      `json:"folderCount"`
	Missing     []string `json:"missing"`
}

// SessionSummary 当前会话概况（用于首页展示）
type SessionSummary struct {
	SessionID       string    `json:"sessionId"`
	Workbook        string    `json:"workbook"`
	Sheet           string    `json:"sheet"`
	ProjectsRoot    string    `json:"projectsRoot"`
	RecordCount     int       `json:"recordCount"`
	DiagnosticCount int       `json:"diagnosticCount"`
	LoadedAt        time.Time `json:"loadedAt"`
	SavedAt         time.Time `json:"savedAt"`
	LastSaveError   string    `json:"lastSaveError,omitempty"`
}
