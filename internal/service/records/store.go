package records

import (
	"strings"

	"ketidesk/internal/logger"
	"ketidesk/internal/model"
)

// DefaultSheet 默认工作表名称
const DefaultSheet = "课题列表"

// Store 课题总表：加载、保存、校验与增删改查
//
// Store 本身不持有数据集，所有操作接收当前表并返回新表，传入的表不会被修改。
type Store struct {
	sheet string
	log   logger.Logger
}

// NewStore 创建总表存储；sheet 为空时使用默认工作表名
func NewStore(sheet string, log logger.Logger) *Store {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{sheet: sheet, log: log}
}

// Sheet 工作表名称
func (s *Store) Sheet() string {
	return s.sheet
}

// applyField 按列类型写入一个字段，值非法时降级并记录提示
func (s *Store) applyField(rec *model.ProjectRecord, row int, column, raw string, diags *Diagnostics) {
	kind, _ := model.KindOf(column)
	value := strings.TrimSpace(raw)

	switch kind {
	case model.KindNumber:
		n, ok := ParseNumber(value)
		if !ok {
			diags.add(row, column, "数值 %q 无效，已设为 0", value)
			s.log.Warn("字段 %s 的值 %q 无效，已设为 0", column, value)
		}
		*rec.NumberPtr(column) = n
	case model.KindDate:
		d, ok := ParseDate(value)
		if !ok {
			diags.add(row, column, "日期 %q 格式无效，已清空", value)
			s.log.Warn("日期字段 %s 的值 %q 格式无效，已清空", column, value)
		}
		*rec.DatePtr(column) = d
	case model.KindYear:
		y, ok := NormalizeYear(value)
		if !ok {
			diags.add(row, column, "年份 %q 无效，已清空", value)
		}
		rec.StartYear = y
	case model.KindSeq:
		// 序号只由行位置决定
	default:
		rec.SetText(column, value)
	}
}

// derive 重新计算总预算与开始年份
func derive(rec *model.ProjectRecord) {
	rec.TotalBudget = rec.FundSum()
	rec.StartYear = YearOf(rec.StartDate)
}
