package model

import (
	"strconv"
	"strings"
)

// Status 课题状态
type Status string

const (
	StatusProposed      Status = "申报"
	StatusApproved      Status = "已立项"
	StatusActive        Status = "在研"
	StatusMidTermPassed Status = "中期已过"
	StatusClosed        Status = "已结题"
	StatusDelayed       Status = "延期"
	StatusTerminated    Status = "中止"
	StatusOther         Status = "其他"
)

// Statuses 全部合法状态（有序）
var Statuses = []Status{
	StatusProposed, StatusApproved, StatusActive, StatusMidTermPassed,
	StatusClosed, StatusDelayed, StatusTerminated, StatusOther,
}

// Valid 是否为合法状态
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// OrDefault 非法或为空时回落为“申报”
func (s Status) OrDefault() Status {
	if s.Valid() {
		return s
	}
	return StatusProposed
}

// ProjectRecord 课题记录（总表中的一行）
type ProjectRecord struct {
	Seq             int     `json:"seq"`
	OwningUnit      string  `json:"owningUnit"`
	PerformingUnit  string  `json:"performingUnit"`
	Title           string  `json:"title"`
	Level           string  `json:"level"`
	Type            string  `json:"type"`
	StartYear       string  `json:"startYear"`
	Role            string  `json:"role"`
	Status          Status  `json:"status"`
	ProjectID       string  `json:"projectId"`
	Contact         string  `json:"contact"`
	Leader          string  `json:"leader"`
	StartDate       string  `json:"startDate"`
	PlannedEndDate  string  `json:"plannedEndDate"`
	DelayDate       string  `json:"delayDate"`
	ActualCloseDate string  `json:"actualCloseDate"`
	TotalBudget     float64 `json:"totalBudget"`
	ExternalFund    float64 `json:"externalFund"`
	InstituteFund   float64 `json:"instituteFund"`
	DepartmentFund  float64 `json:"departmentFund"`
}

// FundSum 三项经费之和
func (r *ProjectRecord) FundSum() float64 {
	return r.ExternalFund + r.InstituteFund + r.DepartmentFund
}

// Text 按列名返回字符串形式的值
func (r *ProjectRecord) Text(column string) (string, bool) {
	switch column {
	case ColSeq:
		return strconv.Itoa(r.Seq), true
	case ColOwningUnit:
		return r.OwningUnit, true
	case ColPerformingUnit:
		return r.PerformingUnit, true
	case ColTitle:
		return r.Title, true
	case ColLevel:
		return r.Level, true
	case ColType:
		return r.Type, true
	case ColStartYear:
		return r.StartYear, true
	case ColRole:
		return r.Role, true
	case ColStatus:
		return string(r.Status), true
	case ColProjectID:
		return r.ProjectID, true
	case ColContact:
		return r.Contact, true
	case ColLeader:
		return r.Leader, true
	case ColStartDate:
		return r.StartDate, true
	case ColPlannedEndDate:
		return r.PlannedEndDate, true
	case ColDelayDate:
		return r.DelayDate, true
	case ColActualCloseDate:
		return r.ActualCloseDate, true
	case ColTotalBudget:
		return FormatNumber(r.TotalBudget), true
	case ColExternalFund:
		return FormatNumber(r.ExternalFund), true
	case ColInstituteFund:
		return FormatNumber(r.InstituteFund), true
	case ColDepartmentFund:
		return FormatNumber(r.DepartmentFund), true
	}
	return "", false
}

// SetText 写入文本列；非文本列返回 false
func (r *ProjectRecord) SetText(column, value string) bool {
	switch column {
	case ColOwningUnit:
		r.OwningUnit = value
	case ColPerformingUnit:
		r.PerformingUnit = value
	case ColTitle:
		r.Title = value
	case ColLevel:
		r.Level = value
	case ColType:
		r.Type = value
	case ColRole:
		r.Role = value
	case ColStatus:
		r.Status = Status(value)
	case ColProjectID:
		r.ProjectID = value
	case ColContact:
		r.Contact = value
	case ColLeader:
		r.Leader = value
	default:
		return false
	}
	return true
}

// DatePtr 返回日期列字段指针
func (r *ProjectRecord) DatePtr(column string) *string {
	switch column {
	case ColStartDate:
		return &r.StartDate
	case ColPlannedEndDate:
		return &r.PlannedEndDate
	case ColDelayDate:
		return &r.DelayDate
	case ColActualCloseDate:
		return &r.ActualCloseDate
	}
	return nil
}

// NumberPtr 返回数值列字段指针
func (r *ProjectRecord) NumberPtr(column string) *float64 {
	switch column {
	case ColTotalBudget:
		return &r.TotalBudget
	case ColExternalFund:
		return &r.ExternalFund
	case ColInstituteFund:
		return &r.InstituteFund
	case ColDepartmentFund:
		return &r.DepartmentFund
	}
	return nil
}

// FormatNumber 数值转文本（不带多余的小数位）
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fields 表单提交的字段（列名 -> 原始文本）
type Fields map[string]string

// Table 课题总表（内存中的数据集）
type Table []ProjectRecord

// Clone 复制表，修改副本不影响原表
func (t Table) Clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// IndexOf 按课题编号精确查找（忽略首尾空白）
func (t Table) IndexOf(projectID string) int {
	id := strings.TrimSpace(projectID)
	for i := range t {
		if strings.TrimSpace(t[i].ProjectID) == id {
			return i
		}
	}
	return -1
}

// ContainsFold 是否存在编号（大小写不敏感）
func (t Table) ContainsFold(projectID string) bool {
	id := strings.TrimSpace(projectID)
	for i := range t {
		if strings.EqualFold(strings.TrimSpace(t[i].ProjectID), id) {
			return true
		}
	}
	return false
}

// Get 按编号取记录
func (t Table) Get(projectID string) (ProjectRecord, bool) {
	if i := t.IndexOf(projectID); i >= 0 {
		return t[i], true
	}
	return ProjectRecord{}, false
}

// Renumber 重新生成连续的序号 1..N
func (t Table) Renumber() {
	for i := range t {
		t[i].Seq = i + 1
	}
}
