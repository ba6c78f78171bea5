package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ketidesk/internal/config"
	"ketidesk/internal/logger"
	"ketidesk/internal/server/handlers"
	"ketidesk/internal/service/project"
)

// Server HTTP服务器
type Server struct {
	router   *gin.Engine
	projects *project.Manager
	log      logger.Logger
	srv      *http.Server
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, projects *project.Manager, log logger.Logger) *Server {
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		router:   gin.New(),
		projects: projects,
		log:      log,
	}
	// 课题编号里可能带 "/"，客户端以 %2F 传入；按原始路径匹配路由后再解码参数
	s.router.UseRawPath = true
	s.router.UnescapePathValues = true
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.setupRoutes(devMode)
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// requestLogger 请求日志写入应用日志而不是 gin 默认的标准输出
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(devMode bool) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		handlers.NewHandlers(s.projects).RegisterRoutes(api)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, handlers.Response{Code: 0, Message: "ok"})
	})

	if devMode {
		// 开发模式：代理到前端开发服务器
		s.router.NoRoute(func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "http://localhost:5173"+c.Request.URL.Path)
		})
	} else {
		s.router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, handlers.Response{Code: http.StatusNotFound, Message: "not found"})
		})
	}
}

// Handler 返回路由（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，阻塞直到出错或调用 Shutdown
func (s *Server) Run(addr string) error {
	s.srv.Addr = addr
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// SaveNow 立即把总表写回磁盘
func (s *Server) SaveNow() error {
	if s.projects == nil {
		return nil
	}
	return s.projects.SaveNow()
}
