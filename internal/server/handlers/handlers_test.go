package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketidesk/internal/service/folder"
	"ketidesk/internal/service/project"
	"ketidesk/internal/service/projectsync"
	"ketidesk/internal/service/records"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	engine := projectsync.NewEngine(records.NewStore("", nil), folder.NewStore(nil, nil), nil, nil)
	m, err := project.NewManager(filepath.Join(dir, "总表.xlsx"), root, engine, nil, nil, nil)
	require.NoError(t, err)
	_, err = m.Reload()
	require.NoError(t, err)

	r := gin.New()
	NewHandlers(m).RegisterRoutes(r.Group("/api"))
	return r, root
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createBody(id, title, status string) map[string]any {
	return map[string]any{"fields": map[string]string{
		"课题编号": id,
		"课题名称": title,
		"课题状态": status,
		"开始日期": "2024-03-01",
	}}
}

func TestCreateGetAndList(t *testing.T) {
	r, root := newTestRouter(t)

	resp := do(t, r, http.MethodPost, "/api/projects", createBody("P1", "桥梁检测", "在研"))
	require.Equal(t, 0, resp.Code, resp.Message)

	var result project.MutationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.NotNil(t, result.Project)
	assert.Equal(t, filepath.Join(root, "2024-在研-P1-桥梁检测"), result.Project.Path)
	assert.DirExists(t, result.Project.Path)

	resp = do(t, r, http.MethodGet, "/api/projects/P1", nil)
	require.Equal(t, 0, resp.Code)
	var view project.ProjectView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "桥梁检测", view.Record.Title)

	resp = do(t, r, http.MethodGet, "/api/projects?q="+url.QueryEscape("桥梁"), nil)
	var list struct {
		Items []project.ProjectView `json:"items"`
		Total int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, 1, list.Total)

	resp = do(t, r, http.MethodGet, "/api/projects?column="+url.QueryEscape("不存在"), nil)
	assert.Equal(t, CodeUnknownColumn, resp.Code)
}

func TestCreateErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := do(t, r, http.MethodPost, "/api/projects", map[string]any{})
	assert.Equal(t, CodeBadRequest, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/projects", createBody("", "Foo", ""))
	assert.Equal(t, CodeBlankID, resp.Code)

	require.Equal(t, 0, do(t, r, http.MethodPost, "/api/projects", createBody("P1", "Foo", "")).Code)
	resp = do(t, r, http.MethodPost, "/api/projects", createBody("p1", "Bar", ""))
	assert.Equal(t, CodeDuplicateID, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/projects", createBody("P2", "Bar", "暂停"))
	assert.Equal(t, CodeInvalidStatus, resp.Code)
}

func TestStatusUpdateAndDelete(t *testing.T) {
	r, root := newTestRouter(t)
	require.Equal(t, 0, do(t, r, http.MethodPost, "/api/projects", createBody("P1", "Foo", "在研")).Code)

	resp := do(t, r, http.MethodPost, "/api/projects/P1/status", map[string]string{"status": "已结题"})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.DirExists(t, filepath.Join(root, "2024-已结题-P1-Foo"))

	resp = do(t, r, http.MethodPatch, "/api/projects/P1", map[string]any{"fields": map[string]string{"课题负责人": "张三"}})
	require.Equal(t, 0, resp.Code)
	var result project.MutationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "张三", result.Project.Record.Leader)

	resp = do(t, r, http.MethodDelete, "/api/projects/P1", nil)
	require.Equal(t, 0, resp.Code)
	assert.DirExists(t, filepath.Join(root, "2024-已结题-P1-Foo"))

	resp = do(t, r, http.MethodGet, "/api/projects/P1", nil)
	assert.Equal(t, CodeNotFound, resp.Code)
	resp = do(t, r, http.MethodPost, "/api/projects/P1/open", nil)
	assert.Equal(t, CodeNotFound, resp.Code)
}

func TestStatsMetaAndWorkbookEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, 0, do(t, r, http.MethodPost, "/api/projects", createBody("P1", "Foo", "在研")).Code)
	require.Equal(t, 0, do(t, r, http.MethodPost, "/api/projects", createBody("P2", "Bar", "在研")).Code)

	resp := do(t, r, http.MethodGet, "/api/stats?dim="+url.QueryEscape("课题状态"), nil)
	require.Equal(t, 0, resp.Code)
	var stats struct {
		Groups []records.GroupCount `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	require.Len(t, stats.Groups, 1)
	assert.Equal(t, 2, stats.Groups[0].Count)

	resp = do(t, r, http.MethodGet, "/api/stats?dim=nope", nil)
	assert.Equal(t, CodeUnknownColumn, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/meta", nil)
	require.Equal(t, 0, resp.Code)
	var meta struct {
		Columns  []string               `json:"columns"`
		Statuses []string               `json:"statuses"`
		Session  project.SessionSummary `json:"session"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &meta))
	assert.Len(t, meta.Columns, 20)
	assert.Contains(t, meta.Statuses, "中期已过")
	assert.Equal(t, 2, meta.Session.RecordCount)

	for _, path := range []string{"/api/sync", "/api/reload", "/api/save"} {
		resp = do(t, r, http.MethodPost, path, nil)
		assert.Equal(t, 0, resp.Code, path)
	}

	resp = do(t, r, http.MethodGet, "/api/diagnostics", nil)
	assert.Equal(t, 0, resp.Code)
	resp = do(t, r, http.MethodGet, "/api/logs", nil)
	assert.Equal(t, 0, resp.Code)
	resp = do(t, r, http.MethodGet, "/api/logs?limit=x", nil)
	assert.Equal(t, CodeBadRequest, resp.Code)
}

func TestUnavailableWithoutManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandlers(nil).RegisterRoutes(r.Group("/api"))

	resp := do(t, r, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, CodeUnavailable, resp.Code)
}
