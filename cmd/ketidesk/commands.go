package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ketidesk/internal/config"
	"ketidesk/internal/model"
)

var listColumn string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "读取总表并为缺少目录的课题补建目录",
	RunE:  runSync,
}

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "列出课题，可按关键字过滤",
	Long: `列出总表中的课题。只读取总表与已有目录，不会创建总表或补建目录；
需要补建目录时请使用 ketidesk sync。

Examples:
  # 列出全部课题
  ketidesk list

  # 在所有列中查找“桥梁”
  ketidesk list 桥梁

  # 只按课题状态过滤
  ketidesk list 在研 --column 课题状态`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查总表与课题目录，只输出提示，不做任何修改",
	RunE:  runCheck,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "在可执行文件目录生成默认 config.toml",
	RunE:  runInit,
}

func init() {
	listCmd.Flags().StringVar(&listColumn, "column", "", "只在指定列中查找")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loaded, err := a.projects.Reload()
	if err != nil {
		return err
	}
	result := a.projects.Sync()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "课题记录: %d\n", loaded.RecordCount)
	fmt.Fprintf(out, "课题目录: %d\n", result.FolderCount)
	if len(result.Missing) > 0 {
		fmt.Fprintf(out, "以下课题目录创建失败: %v\n", result.Missing)
		return fmt.Errorf("%d 个课题目录创建失败", len(result.Missing))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if listColumn != "" && !model.IsColumn(listColumn) {
		return fmt.Errorf("列名不存在: %s", listColumn)
	}
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	views, _ := a.projects.Browse(query, listColumn)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "序号\t课题编号\t课题名称\t课题状态\t开始年份\t总预算\t目录")
	for _, v := range views {
		r := v.Record
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Seq, r.ProjectID, r.Title, r.Status, r.StartYear, model.FormatNumber(r.TotalBudget), filepath.Base(v.Path))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "共 %d 条\n", len(views))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "课题总表: %s\n", a.paths.Workbook)

	count, diags := a.projects.Check()
	fmt.Fprintf(out, "课题记录: %d\n", count)
	if len(diags) == 0 {
		fmt.Fprintln(out, "未发现问题")
		return nil
	}
	for _, d := range diags {
		fmt.Fprintf(out, "  %s\n", d.String())
	}
	fmt.Fprintf(out, "共 %d 条提示\n", len(diags))
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(exeDir(), "config.toml")
	if _, err := os.Stat(path); err == nil {
		return errors.New("config.toml 已存在: " + path)
	}
	cfg, _ := loadConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已生成配置文件: %s\n", path)
	return nil
}

func exeDir() string {
	dir, err := config.GetExeDir()
	if err != nil {
		return "."
	}
	return dir
}
