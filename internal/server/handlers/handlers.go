package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ketidesk/internal/model"
	"ketidesk/internal/service/project"
	"ketidesk/internal/service/records"
)

// Handlers API处理器
type Handlers struct {
	projects *project.Manager
}

// NewHandlers 创建处理器
func NewHandlers(projects *project.Manager) *Handlers {
	return &Handlers{projects: projects}
}

// Response 通用响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 业务错误码
const (
	CodeBadRequest    = 1001
	CodeBlankID       = 1002
	CodeInvalidStatus = 1003
	CodeUnknownColumn = 1004
	CodeNotFound      = 4004
	CodeDuplicateID   = 4009
	CodeUnavailable   = 5001
	CodeInternal      = 5002
)

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// failWith 按错误类型映射业务错误码
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, records.ErrBlankID):
		errorResponse(c, CodeBlankID, "课题编号不能为空")
	case errors.Is(err, records.ErrDuplicateID):
		errorResponse(c, CodeDuplicateID, "课题编号已存在: "+err.Error())
	case errors.Is(err, records.ErrInvalidStatus):
		errorResponse(c, CodeInvalidStatus, "课题状态不合法: "+err.Error())
	case errors.Is(err, records.ErrUnknownColumn):
		errorResponse(c, CodeUnknownColumn, "列名不存在: "+err.Error())
	case errors.Is(err, records.ErrNotFound):
		errorResponse(c, CodeNotFound, "课题不存在: "+err.Error())
	case errors.Is(err, project.ErrFolderMissing):
		errorResponse(c, CodeNotFound, "课题目录不存在，请先执行同步")
	default:
		errorResponse(c, CodeInternal, err.Error())
	}
}

// RegisterRoutes 注册 /api 下的路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/meta", h.GetMeta)

	api.GET("/projects", h.ListProjects)
	api.POST("/projects", h.CreateProject)
	api.GET("/projects/:id", h.GetProject)
	api.PATCH("/projects/:id", h.UpdateProject)
	api.DELETE("/projects/:id", h.DeleteProject)
	api.POST("/projects/:id/status", h.SetStatus)
	api.POST("/projects/:id/open", h.OpenFolder)

	api.POST("/sync", h.Sync)
	api.POST("/reload", h.Reload)
	api.POST("/save", h.Save)

	api.GET("/stats", h.Stats)
	api.GET("/diagnostics", h.Diagnostics)
	api.GET("/logs", h.Logs)
}

func (h *Handlers) available(c *gin.Context) bool {
	if h.projects == nil {
		errorResponse(c, CodeUnavailable, "课题管理不可用")
		return false
	}
	return true
}

// ==================== Meta ====================

// GetMeta 列定义、状态与下拉选项，以及当前会话概况
func (h *Handlers) GetMeta(c *gin.Context) {
	if !h.available(c) {
		return
	}
	success(c, gin.H{
		"columns":          model.Columns,
		"dateColumns":      model.DateColumns,
		"fundColumns":      model.FundColumns,
		"protectedColumns": model.ProtectedColumns,
		"statuses":         model.Statuses,
		"levels":           model.ProjectLevels,
		"types":            model.ProjectTypes,
		"roles":            model.ProjectRoles,
		"session":          h.projects.Summary(),
	})
}

// ==================== Projects ====================

// ListProjects 查询课题；column 为空时在所有列中查找
func (h *Handlers) ListProjects(c *gin.Context) {
	if !h.available(c) {
		return
	}
	query := c.Query("q")
	column := strings.TrimSpace(c.Query("column"))
	if column != "" && !model.IsColumn(column) {
		errorResponse(c, CodeUnknownColumn, "列名不存在: "+column)
		return
	}
	items := h.projects.List(query, column)
	success(c, gin.H{
		"items": items,
		"total": len(items),
	})
}

// GetProject 获取单个课题
func (h *Handlers) GetProject(c *gin.Context) {
	if !h.available(c) {
		return
	}
	view, err := h.projects.Get(c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, view)
}

// CreateProject 新建课题（同时创建课题目录）
func (h *Handlers) CreateProject(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req struct {
		Fields       model.Fields `json:"fields"`
		OverridePath string       `json:"overridePath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Fields == nil {
		errorResponse(c, CodeBadRequest, "参数错误")
		return
	}

	result, err := h.projects.Create(req.Fields, strings.TrimSpace(req.OverridePath))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, result)
}

// UpdateProject 修改课题字段
func (h *Handlers) UpdateProject(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req struct {
		Fields model.Fields `json:"fields"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Fields == nil {
		errorResponse(c, CodeBadRequest, "参数错误")
		return
	}

	result, err := h.projects.Update(c.Param("id"), req.Fields)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, result)
}

// SetStatus 修改课题状态（目录随之改名）
func (h *Handlers) SetStatus(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, CodeBadRequest, "参数错误")
		return
	}

	result, err := h.projects.SetStatus(c.Param("id"), model.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, result)
}

// DeleteProject 删除课题记录（目录保留）
func (h *Handlers) DeleteProject(c *gin.Context) {
	if !h.available(c) {
		return
	}
	result, err := h.projects.Delete(c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, result)
}

// OpenFolder 在文件管理器中打开课题目录
func (h *Handlers) OpenFolder(c *gin.Context) {
	if !h.available(c) {
		return
	}
	path, err := h.projects.OpenFolder(c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, gin.H{"path": path})
}

// ==================== Workbook ====================

// Sync 为缺少目录的课题补建目录
func (h *Handlers) Sync(c *gin.Context) {
	if !h.available(c) {
		return
	}
	success(c, h.projects.Sync())
}

// Reload 重新读取总表
func (h *Handlers) Reload(c *gin.Context) {
	if !h.available(c) {
		return
	}
	result, err := h.projects.Reload()
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, result)
}

// Save 立即写回总表
func (h *Handlers) Save(c *gin.Context) {
	if !h.available(c) {
		return
	}
	if err := h.projects.SaveNow(); err != nil {
		errorResponse(c, CodeInternal, "保存失败（总表可能正被其他程序打开）: "+err.Error())
		return
	}
	success(c, h.projects.Summary())
}

// ==================== Analysis ====================

// Stats 按维度统计，dim 可重复或用逗号分隔，默认按课题状态
func (h *Handlers) Stats(c *gin.Context) {
	if !h.available(c) {
		return
	}
	dims := make([]string, 0)
	for _, d := range c.QueryArray("dim") {
		for _, part := range strings.Split(d, ",") {
			if part = strings.TrimSpace(part); part != "" {
				dims = append(dims, part)
			}
		}
	}
	if len(dims) == 0 {
		dims = []string{model.ColStatus}
	}

	groups, err := h.projects.Stats(dims...)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, gin.H{
		"dimensions": dims,
		"groups":     groups,
	})
}

// Diagnostics 最近一次加载的提示
func (h *Handlers) Diagnostics(c *gin.Context) {
	if !h.available(c) {
		return
	}
	diags := h.projects.Diagnostics()
	success(c, gin.H{
		"items":    diags,
		"messages": diags.Strings(),
	})
}

// Logs 总表读写日志
func (h *Handlers) Logs(c *gin.Context) {
	if !h.available(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		errorResponse(c, CodeBadRequest, "limit 参数错误")
		return
	}
	logs, err := h.projects.Logs(limit)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, logs)
}
