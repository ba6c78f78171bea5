package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ketidesk/internal/server"
	"ketidesk/internal/util"
	"ketidesk/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动本地服务并打开浏览器",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("==========================================")
	fmt.Println("  KetiDesk - 科研课题管理")
	fmt.Println("==========================================")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("数据目录: %s\n", a.paths.DataDir)
	fmt.Printf("课题总表: %s\n", a.paths.Workbook)
	fmt.Printf("课题目录: %s\n", a.paths.ProjectsRoot)

	loaded, err := a.projects.Reload()
	if err != nil {
		a.log.Warn("加载总表时出现问题: %v", err)
	}
	fmt.Printf("已加载 %d 条课题记录\n", loaded.RecordCount)
	for _, d := range loaded.Diagnostics {
		fmt.Printf("  提示: %s\n", d.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Data.WatchWorkbook {
		w, err := watcher.NewWorkbookWatcher(a.paths.Workbook, watcher.DefaultDebounce, a.projects.HandleExternalChange, a.log)
		if err != nil {
			a.log.Warn("无法监听总表变更: %v", err)
		} else if err := w.Start(ctx); err != nil {
			a.log.Warn("无法监听总表变更: %v", err)
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(a.cfg, a.projects, a.log)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("服务启动中，监听端口 %d ...\n", a.cfg.Server.Port)
		errCh <- srv.Run(addr)
	}()

	// 打开浏览器
	if !a.cfg.Server.DevMode {
		fmt.Printf("正在打开浏览器: %s\n", url)
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
		}
	} else {
		fmt.Printf("开发模式: 请访问 %s\n", url)
	}

	fmt.Println("\n按 Ctrl+C 停止服务...")

	// 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务启动失败: %w", err)
		}
	}

	fmt.Println("\n正在关闭服务...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("关闭服务失败: %v", err)
	}
	if err := srv.SaveNow(); err != nil {
		fmt.Printf("退出前保存失败: %v\n", err)
	}
	return nil
}
