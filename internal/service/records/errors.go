package records

import (
	"errors"
	"fmt"
)

var (
	ErrBlankID       = errors.New("project id is required")
	ErrDuplicateID   = errors.New("project id already exists")
	ErrNotFound      = errors.New("project not found")
	ErrInvalidStatus = errors.New("invalid project status")
	ErrUnknownColumn = errors.New("unknown column")
)

// Diagnostic 加载或修改过程中的提示：数据被修复或降级，但操作继续
type Diagnostic struct {
	Row     int    `json:"row,omitempty"` // 工作表行号，0 表示整表
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Row > 0 && d.Column != "":
		return fmt.Sprintf("第 %d 行 [%s]: %s", d.Row, d.Column, d.Message)
	case d.Row > 0:
		return fmt.Sprintf("第 %d 行: %s", d.Row, d.Message)
	case d.Column != "":
		return fmt.Sprintf("[%s]: %s", d.Column, d.Message)
	}
	return d.Message
}

// Diagnostics 一组提示
type Diagnostics []Diagnostic

// Strings 转为纯文本，供界面直接展示
func (ds Diagnostics) Strings() []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}

func (ds *Diagnostics) add(row int, column, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Row: row, Column: column, Message: fmt.Sprintf(format, args...)})
}
