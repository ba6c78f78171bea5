package records

import (
	"fmt"
	"sort"
	"strings"

	"ketidesk/internal/model"
)

// CheckInsert 校验新编号：非空且不与现有编号重复（大小写不敏感）
func (s *Store) CheckInsert(t model.Table, projectID string) error {
	id := strings.TrimSpace(projectID)
	if id == "" {
		return ErrBlankID
	}
	if t.ContainsFold(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	return nil
}

// Insert 新增一条课题记录
//
// 编号为空或重复、状态非法时拒绝，返回原表。总预算与开始年份由输入推导，
// 直接提交的总预算、开始年份和序号会被忽略。
func (s *Store) Insert(t model.Table, fields model.Fields) (model.Table, Diagnostics, error) {
	id := strings.TrimSpace(fields[model.ColProjectID])
	if err := s.CheckInsert(t, id); err != nil {
		s.log.Warn("无法添加课题 %q: %v", id, err)
		return t, nil, err
	}

	status := model.Status(strings.TrimSpace(fields[model.ColStatus]))
	if status == "" {
		status = model.StatusProposed
	} else if !status.Valid() {
		return t, nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	rec := model.ProjectRecord{ProjectID: id, Status: status}
	var diags Diagnostics
	for _, col := range model.Columns {
		raw, ok := fields[col]
		if !ok || col == model.ColProjectID || col == model.ColStatus || model.IsProtected(col) {
			continue
		}
		s.applyField(&rec, 0, col, raw, &diags)
	}
	s.flagUnknown(fields, &diags)
	derive(&rec)

	next := append(t.Clone(), rec)
	next.Renumber()
	s.log.Info("课题 %q (编号: %s) 添加成功", rec.Title, id)
	return next, diags, nil
}

// Update 修改指定课题的字段
//
// 编号、总预算、开始年份、序号不可直接修改，提交时静默忽略。非法数值按 0、非法日期按空处理，
// 单个字段出错不会中止整条记录的更新。
func (s *Store) Update(t model.Table, projectID string, fields model.Fields) (model.Table, Diagnostics, error) {
	idx := t.IndexOf(projectID)
	if idx < 0 {
		s.log.Warn("找不到课题编号 %q，无法更新", projectID)
		return t, nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}

	next := t.Clone()
	rec := &next[idx]
	var diags Diagnostics
	budgetChanged, startChanged := false, false

	for _, col := range model.Columns {
		raw, ok := fields[col]
		if !ok || model.IsProtected(col) {
			continue
		}
		switch col {
		case model.ColStatus:
			st := model.Status(strings.TrimSpace(raw))
			if !st.Valid() {
				diags.add(0, col, "状态 %q 不是合法取值，已忽略", raw)
				continue
			}
			rec.Status = st
			continue
		case model.ColExternalFund, model.ColInstituteFund, model.ColDepartmentFund:
			budgetChanged = true
		case model.ColStartDate:
			startChanged = true
		}
		s.applyField(rec, 0, col, raw, &diags)
	}
	s.flagUnknown(fields, &diags)

	if budgetChanged {
		rec.TotalBudget = rec.FundSum()
	}
	if startChanged {
		rec.StartYear = YearOf(rec.StartDate)
	}

	s.log.Info("课题 %q 的信息已更新", projectID)
	return next, diags, nil
}

// SetStatus 修改课题状态（不涉及目录）
func (s *Store) SetStatus(t model.Table, projectID string, status model.Status) (model.Table, error) {
	idx := t.IndexOf(projectID)
	if idx < 0 {
		return t, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if !status.Valid() {
		return t, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	next := t.Clone()
	next[idx].Status = status
	s.log.Info("课题 %q 的状态已更新为 %s", projectID, status)
	return next, nil
}

// Delete 删除课题记录并重排序号；不处理课题目录
func (s *Store) Delete(t model.Table, projectID string) (model.Table, error) {
	idx := t.IndexOf(projectID)
	if idx < 0 {
		s.log.Warn("找不到课题编号 %q，无法删除记录", projectID)
		return t, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	next := make(model.Table, 0, len(t)-1)
	next = append(next, t[:idx]...)
	next = append(next, t[idx+1:]...)
	next.Renumber()
	s.log.Info("课题 %q 的记录已删除", projectID)
	return next, nil
}

// Find 按列做大小写不敏感的子串查询；查询词为空返回原表，列名未知返回空结果
func (s *Store) Find(t model.Table, query, column string) model.Table {
	if !model.IsColumn(column) {
		s.log.Warn("列名 %q 不存在于数据表中", column)
		return model.Table{}
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return t
	}
	q = strings.ToLower(q)

	out := make(model.Table, 0)
	for i := range t {
		v, _ := t[i].Text(column)
		if strings.Contains(strings.ToLower(v), q) {
			out = append(out, t[i])
		}
	}
	if len(out) == 0 {
		s.log.Debug("未找到 %s 中包含 %q 的课题", column, query)
	}
	return out
}

func (s *Store) flagUnknown(fields model.Fields, diags *Diagnostics) {
	var unknown []string
	for k := range fields {
		if !model.IsColumn(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		diags.add(0, k, "字段不存在于数据表中，已忽略")
	}
}
