package records

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const isoDate = "2006-01-02"

// 手工编辑的总表中常见的日期写法
var dateLayouts = []string{
	isoDate,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"01-02-06",
	"1/2/06",
}

// ParseDate 将日期文本或 Excel 序列号规范为 YYYY-MM-DD
// 空值返回 ("", true)，无法识别返回 ("", false)
func ParseDate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(isoDate), true
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= 1 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

// ParseNumber 解析经费数值（允许千分位），空值为 0；负数及无法识别的值返回 (0, false)
func ParseNumber(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, true
	}
	v = strings.NewReplacer(",", "", "，", "", " ", "").Replace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// NormalizeYear 规范年份文本（"2024"、"2024.0" 均为 "2024"）；无法识别返回 ("", false)
func NormalizeYear(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || f < 1 || f > 9999 {
		return "", false
	}
	return strconv.Itoa(int(f)), true
}

// YearOf 从 ISO 日期中取年份，日期为空或非法时返回空串
func YearOf(isoDateText string) string {
	t, err := time.Parse(isoDate, isoDateText)
	if err != nil {
		return ""
	}
	return strconv.Itoa(t.Year())
}
