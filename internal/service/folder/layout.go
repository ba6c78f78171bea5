package folder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ketidesk/internal/model"
)

// Group 带子目录的分组
type Group struct {
	Name       string
	Subfolders []string
}

// Entry 标准目录结构中的一项：普通子目录或分组
type Entry struct {
	Name  string
	Group *Group
}

// Skeleton 每个课题目录下必须存在的子目录结构
var Skeleton = []Entry{
	{Name: "01_申报"},
	{Name: "02_立项"},
	{Group: &Group{Name: "03_过程管理", Subfolders: []string{"01_开题", "02_中期", "03_变更"}}},
	{Name: "04_结题"},
	{Name: "05_财务"},
	{Name: "06_其他"},
}

// RelativePaths 按顺序展开 Skeleton，返回全部相对路径（分组目录在其子目录之前）
func RelativePaths() [][]string {
	out := make([][]string, 0, len(Skeleton)+3)
	for _, e := range Skeleton {
		if e.Group == nil {
			out = append(out, []string{e.Name})
			continue
		}
		out = append(out, []string{e.Group.Name})
		for _, sub := range e.Group.Subfolders {
			out = append(out, []string{e.Group.Name, sub})
		}
	}
	return out
}

var now = time.Now

// DirectoryName 课题目录命名：年度-课题状态-课题编号-课题名称
// 年度为空时取当前年份，状态非法时按“申报”处理
func DirectoryName(year string, status model.Status, projectID, title string) string {
	y := strings.TrimSpace(year)
	if y == "" {
		y = strconv.Itoa(now().Year())
	}
	return fmt.Sprintf("%s-%s-%s-%s", Sanitize(y), status.OrDefault(), Sanitize(projectID), Sanitize(title))
}
