package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	port    int
	devMode bool
	dataDir string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ketidesk",
	Short: "科研课题管理：总表与课题目录同步工具",
	Long: `ketidesk 维护一份课题总表（Excel）以及与之一一对应的课题目录。

不带子命令运行时等同于 ketidesk serve：启动本地服务并打开浏览器。`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "开发模式")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dataDir", "", "数据目录 (覆盖配置文件)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
}
