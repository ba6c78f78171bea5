package model

// 标准列名（与总表表头一致，顺序即持久化顺序）
const (
	ColSeq             = "序号"
	ColOwningUnit      = "归口单位"
	ColPerformingUnit  = "承担单位"
	ColTitle           = "课题名称"
	ColLevel           = "课题级别"
	ColType            = "课题类型"
	ColStartYear       = "开始年份"
	ColRole            = "参与角色"
	ColStatus          = "课题状态"
	ColProjectID       = "课题编号"
	ColContact         = "课题联系人"
	ColLeader          = "课题负责人"
	ColStartDate       = "开始日期"
	ColPlannedEndDate  = "计划结束日期"
	ColDelayDate       = "延期时间"
	ColActualCloseDate = "实际结题时间"
	ColTotalBudget     = "总预算"
	ColExternalFund    = "外部专项经费"
	ColInstituteFund   = "院自筹经费"
	ColDepartmentFund  = "所属单位自筹经费"
)

// ColumnKind 列的数据类型
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate
	KindNumber
	KindYear
	KindSeq
)

// Columns 标准列顺序
var Columns = []string{
	ColSeq, ColOwningUnit, ColPerformingUnit, ColTitle, ColLevel, ColType, ColStartYear,
	ColRole, ColStatus, ColProjectID, ColContact, ColLeader,
	ColStartDate, ColPlannedEndDate, ColDelayDate, ColActualCloseDate,
	ColTotalBudget, ColExternalFund, ColInstituteFund, ColDepartmentFund,
}

// DateColumns 日期列
var DateColumns = []string{ColStartDate, ColPlannedEndDate, ColDelayDate, ColActualCloseDate}

// FundColumns 参与求和的三项经费
var FundColumns = []string{ColExternalFund, ColInstituteFund, ColDepartmentFund}

// ProtectedColumns 不允许通过更新直接写入的列
var ProtectedColumns = []string{ColProjectID, ColTotalBudget, ColStartYear, ColSeq}

var columnKinds = map[string]ColumnKind{
	ColSeq:             KindSeq,
	ColStartYear:       KindYear,
	ColStartDate:       KindDate,
	ColPlannedEndDate:  KindDate,
	ColDelayDate:       KindDate,
	ColActualCloseDate: KindDate,
	ColTotalBudget:     KindNumber,
	ColExternalFund:    KindNumber,
	ColInstituteFund:   KindNumber,
	ColDepartmentFund:  KindNumber,
}

// KindOf 返回列类型；第二个返回值表示是否为标准列
func KindOf(column string) (ColumnKind, bool) {
	if !IsColumn(column) {
		return KindText, false
	}
	if k, ok := columnKinds[column]; ok {
		return k, true
	}
	return KindText, true
}

// IsColumn 是否为标准列
func IsColumn(column string) bool {
	for _, c := range Columns {
		if c == column {
			return true
		}
	}
	return false
}

// IsProtected 是否为受保护（派生或标识）列
func IsProtected(column string) bool {
	for _, c := range ProtectedColumns {
		if c == column {
			return true
		}
	}
	return false
}

// 界面下拉选项（仅供展示，不做强制校验）
var (
	ProjectLevels = []string{"国家级", "省部级", "公司级"}
	ProjectTypes  = []string{"应用研究", "试验发展", "其他"}
	ProjectRoles  = []string{"牵头", "参与"}
)
