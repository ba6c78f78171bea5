package util

import (
	"os/exec"
	"path/filepath"
	"runtime"
)

// 便于测试替换
var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// 等待命令结束，非零退出码视为失败
var runCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// OpenBrowser 打开默认浏览器
// 支持 Windows 7/10/11, macOS, Linux
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		// rundll32 调用 url.dll 比 cmd /c start 更稳定，Windows 7 同样可用
		return startCommand("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return startCommand("open", url)
	default:
		return startCommand("xdg-open", url)
	}
}

// OpenBrowserWithFallback 带降级方案的浏览器打开
func OpenBrowserWithFallback(url string) error {
	err := OpenBrowser(url)
	if err == nil {
		return nil
	}

	switch runtime.GOOS {
	case "windows":
		return startCommand("explorer", url)
	case "linux":
		browsers := []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"}
		for _, browser := range browsers {
			if startCommand(browser, url) == nil {
				return nil
			}
		}
	}

	return err
}

// OpenFolder 在系统文件管理器中打开目录；open/xdg-open 以非零码退出时返回错误
func OpenFolder(path string) error {
	switch runtime.GOOS {
	case "windows":
		// explorer 打开成功时退出码也是 1，只能以能否启动为准
		return startCommand("explorer", filepath.Clean(path))
	case "darwin":
		return runCommand("open", path)
	default:
		return runCommand("xdg-open", path)
	}
}
