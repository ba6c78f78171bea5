package records

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"ketidesk/internal/model"
)

// Load 从总表文件加载数据集
//
// 文件不存在或无法解析时返回空表（带标准列）和提示，不会失败：系统总能以零条记录启动。
func (s *Store) Load(path string) (model.Table, Diagnostics) {
	var diags Diagnostics

	if _, err := os.Stat(path); err != nil {
		diags.add(0, "", "总表文件 %s 不存在，将使用空表", path)
		s.log.Info("总表文件 %s 未找到，将创建新的空表", path)
		return model.Table{}, diags
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		diags.add(0, "", "无法读取总表文件 %s: %v", path, err)
		s.log.Error("加载总表文件 %s 失败: %v", path, err)
		return model.Table{}, diags
	}
	defer f.Close()

	t, more := s.loadWorkbook(f)
	s.log.Info("成功从 %s 加载 %d 条课题数据", path, len(t))
	return t, append(diags, more...)
}

// LoadReader 从任意输入流加载总表
func (s *Store) LoadReader(r io.Reader) (model.Table, Diagnostics) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return model.Table{}, Diagnostics{{Message: fmt.Sprintf("无法读取总表: %v", err)}}
	}
	defer f.Close()
	return s.loadWorkbook(f)
}

func (s *Store) loadWorkbook(f *excelize.File) (model.Table, Diagnostics) {
	var diags Diagnostics

	if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx < 0 {
		diags.add(0, "", "工作表 %q 不存在，将使用空表", s.sheet)
		s.log.Warn("工作表 %q 不存在", s.sheet)
		return model.Table{}, diags
	}

	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		diags.add(0, "", "读取工作表 %q 失败: %v", s.sheet, err)
		return model.Table{}, diags
	}
	if len(rows) == 0 {
		return model.Table{}, diags
	}

	// 表头：列名 -> 列索引（重复列名取第一次出现）
	colIndex := make(map[string]int)
	for i, raw := range rows[0] {
		name := NormalizeHeader(raw)
		if name == "" {
			continue
		}
		if name != raw {
			s.log.Debug("表头 %q 按 %q 处理", raw, name)
		}
		if _, dup := colIndex[name]; dup {
			diags.add(1, name, "表头重复，仅使用第一列")
			continue
		}
		colIndex[name] = i
		if !model.IsColumn(name) {
			s.log.Debug("忽略非标准列 %q", name)
		}
	}

	present := func(col string) bool {
		_, ok := colIndex[col]
		return ok
	}
	for _, col := range model.Columns {
		if !present(col) {
			diags.add(0, col, "文件中缺少该列，已按默认值补齐")
			s.log.Warn("文件中缺少列 %q，已添加", col)
		}
	}

	table := make(model.Table, 0, len(rows)-1)
	for r, row := range rows[1:] {
		rowNum := r + 2
		if isBlankRow(row) {
			continue
		}
		get := func(col string) string {
			if idx, ok := colIndex[col]; ok && idx < len(row) {
				return row[idx]
			}
			return ""
		}

		var rec model.ProjectRecord
		for _, col := range model.Columns {
			if !present(col) {
				continue
			}
			s.applyField(&rec, rowNum, col, get(col), &diags)
		}
		if rec.Status != "" && !rec.Status.Valid() {
			diags.add(rowNum, model.ColStatus, "状态 %q 不是合法取值，目录命名按“申报”处理", rec.Status)
		}
		table = append(table, rec)
	}

	s.repairIDs(table, present(model.ColProjectID), &diags)
	s.flagDuplicates(table, &diags)

	allFunds := present(model.ColExternalFund) && present(model.ColInstituteFund) && present(model.ColDepartmentFund)
	if !allFunds && present(model.ColTotalBudget) {
		diags.add(0, model.ColTotalBudget, "缺少部分经费列，无法重新计算总预算，沿用文件中的值")
	}
	for i := range table {
		rec := &table[i]
		if allFunds || !present(model.ColTotalBudget) {
			rec.TotalBudget = rec.FundSum()
		}
		if rec.StartDate != "" {
			rec.StartYear = YearOf(rec.StartDate)
		}
	}

	table.Renumber()
	return table, diags
}

// repairIDs 为缺少编号的记录分配临时编号 temp_id_<行位置>
func (s *Store) repairIDs(table model.Table, hasColumn bool, diags *Diagnostics) {
	if !hasColumn {
		diags.add(0, model.ColProjectID, "缺少课题编号列，已为全部 %d 条记录分配临时编号", len(table))
	}
	missing := 0
	for i := range table {
		if strings.TrimSpace(table[i].ProjectID) != "" {
			continue
		}
		table[i].ProjectID = placeholderID(i)
		if hasColumn {
			diags.add(0, model.ColProjectID, "第 %d 条记录缺少课题编号，已分配临时编号 %s", i+1, table[i].ProjectID)
		}
		missing++
	}
	if missing > 0 {
		s.log.Warn("发现 %d 条记录缺少课题编号，已分配临时编号", missing)
	}
}

// flagDuplicates 标记重复编号（大小写不敏感），加载时只提示不拒绝
func (s *Store) flagDuplicates(table model.Table, diags *Diagnostics) {
	seen := make(map[string]int)
	for _, rec := range table {
		seen[strings.ToLower(rec.ProjectID)]++
	}
	var dups []string
	reported := make(map[string]bool)
	for _, rec := range table {
		key := strings.ToLower(rec.ProjectID)
		if seen[key] > 1 && !reported[key] {
			reported[key] = true
			dups = append(dups, rec.ProjectID)
		}
	}
	if len(dups) == 0 {
		return
	}
	sort.Strings(dups)
	diags.add(0, model.ColProjectID, "发现重复的课题编号: %s，请确保课题编号唯一", strings.Join(dups, ", "))
	s.log.Warn("发现重复的课题编号: %s", strings.Join(dups, ", "))
}

func placeholderID(index int) string {
	return fmt.Sprintf("temp_id_%d", index)
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
