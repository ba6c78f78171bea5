package records

import (
	"regexp"

	"ketidesk/internal/model"
)

var whitespace = regexp.MustCompile(`\s+`)

// 外部表格常用“项目”代替“课题”
var headerAliases = map[string]string{
	"项目名称":   model.ColTitle,
	"项目编号":   model.ColProjectID,
	"项目状态":   model.ColStatus,
	"项目级别":   model.ColLevel,
	"项目类型":   model.ColType,
	"项目负责人":  model.ColLeader,
	"项目联系人":  model.ColContact,
	"课题预算":   model.ColTotalBudget,
	"立项年份":   model.ColStartYear,
	"结题时间":   model.ColActualCloseDate,
	"延期日期":   model.ColDelayDate,
	"计划结题日期": model.ColPlannedEndDate,
}

// NormalizeHeader 规范化表头：去除所有空白（含单元格内换行），再把别名映射为标准列名
func NormalizeHeader(name string) string {
	name = whitespace.ReplaceAllString(name, "")
	if canonical, ok := headerAliases[name]; ok {
		return canonical
	}
	return name
}
