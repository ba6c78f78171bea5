package main

import (
	"fmt"
	"log"

	"ketidesk/internal/config"
	"ketidesk/internal/logger"
	"ketidesk/internal/metrics"
	"ketidesk/internal/service/folder"
	"ketidesk/internal/service/project"
	"ketidesk/internal/service/projectsync"
	"ketidesk/internal/service/records"
	"ketidesk/internal/store"
)

// app 一次运行所需的全部组件
type app struct {
	cfg      *config.AppConfig
	info     config.LoadConfigInfo
	paths    config.Paths
	log      logger.Logger
	journal  *store.Store
	projects *project.Manager
}

// loadConfig 加载配置并应用命令行参数
func loadConfig() (*config.AppConfig, config.LoadConfigInfo) {
	cfg, info, err := config.LoadConfigWithInfo()
	if err != nil {
		log.Printf("加载配置失败，使用默认配置: %v", err)
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{}
	}

	// 命令行参数覆盖配置
	if port > 0 && !info.PortSpecified {
		cfg.Server.Port = port
	}
	if devMode {
		cfg.Server.DevMode = true
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	return cfg, info
}

// newApp 组装各组件；journal 初始化失败时降级为不记录日志
func newApp() (*app, error) {
	cfg, info := loadConfig()

	paths, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	lg, err := logger.NewLogger(paths.LogsDir, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	a := &app{cfg: cfg, info: info, paths: paths, log: lg}

	var journal project.Journal
	if st, err := store.New(paths.DBPath); err != nil {
		lg.Warn("初始化数据库失败，读写日志将不会保存: %v", err)
	} else {
		a.journal = st
		journal = st
	}

	m := metrics.NewMetrics()
	engine := projectsync.NewEngine(
		records.NewStore(cfg.Data.SheetName, lg),
		folder.NewStore(lg, m),
		lg, m,
	)

	a.projects, err = project.NewManager(paths.Workbook, paths.ProjectsRoot, engine, journal, lg, m)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close 释放资源
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("关闭数据库失败: %v", err)
		}
	}
	_ = a.log.Sync()
}
