package store

import (
	"fmt"
	"time"
)

// 日志类型
const (
	KindLoad = "load"
	KindSave = "save"
)

// 日志状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// WorkbookLog 一次总表读写记录
type WorkbookLog struct {
	ID              int64     `json:"id"`
	Kind            string    `json:"kind"`
	FilePath        string    `json:"filePath"`
	RowCount        int       `json:"rowCount"`
	DiagnosticCount int       `json:"diagnosticCount"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CreateWorkbookLog 写入一条读写日志，返回日志 ID
func (s *Store) CreateWorkbookLog(entry WorkbookLog) (int64, error) {
	status := entry.Status
	if status == "" {
		status = StatusSuccess
	}
	res, err := s.db.Exec(`
		INSERT INTO workbook_logs (kind, file_path, row_count, diagnostic_count, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Kind, entry.FilePath, entry.RowCount, entry.DiagnosticCount, status, entry.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to create workbook log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get workbook log id: %w", err)
	}
	return id, nil
}

// ListWorkbookLogs 按时间倒序返回最近的日志；limit <= 0 时默认 50 条
func (s *Store) ListWorkbookLogs(limit int) ([]WorkbookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, kind, file_path, row_count, diagnostic_count, status, error_message, created_at
		FROM workbook_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query workbook logs: %w", err)
	}
	defer rows.Close()

	logs := make([]WorkbookLog, 0)
	for rows.Next() {
		var l WorkbookLog
		if err := rows.Scan(&l.ID, &l.Kind, &l.FilePath, &l.RowCount, &l.DiagnosticCount, &l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workbook log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
