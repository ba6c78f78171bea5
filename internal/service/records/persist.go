package records

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"ketidesk/internal/model"
)

// 便于测试替换
var (
	osWriteFile = func(path string, data []byte) error { return os.WriteFile(path, data, 0644) }
	osRename    = os.Rename
)

// Persist 将数据集写回总表文件
//
// 写入前重新规范数值、日期和年份，保证 Persist 后再 Load 结果稳定。
// 文件被占用或不可写时返回 error，内存中的数据不受影响。
func (s *Store) Persist(t model.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", s.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(model.Columns))
	for i, col := range model.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(s.sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetRowStyle(s.sheet, 1, 1, headerStyle)
	}
	_ = f.SetColWidth(s.sheet, "D", "D", 36)

	for i := range t {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := persistRow(&t[i], i+1)
		if err := f.SetSheetRow(s.sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	if err := writeBytesAtomic(path, buf.Bytes()); err != nil {
		s.log.Error("保存总表 %s 失败（文件可能被其他程序打开）: %v", path, err)
		return err
	}

	s.log.Info("数据已保存到 %s（%d 条）", path, len(t))
	return nil
}

func persistRow(rec *model.ProjectRecord, seq int) []interface{} {
	row := make([]interface{}, 0, len(model.Columns))
	for _, col := range model.Columns {
		kind, _ := model.KindOf(col)
		switch kind {
		case model.KindSeq:
			row = append(row, seq)
		case model.KindNumber:
			v := *rec.NumberPtr(col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			row = append(row, v)
		case model.KindDate:
			d, _ := ParseDate(*rec.DatePtr(col))
			row = append(row, d)
		case model.KindYear:
			y, _ := NormalizeYear(rec.StartYear)
			if y == "" {
				row = append(row, "")
				continue
			}
			n, _ := strconv.Atoi(y)
			row = append(row, n)
		default:
			v, _ := rec.Text(col)
			row = append(row, v)
		}
	}
	return row
}

func writeBytesAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()[:8]))
	if err := osWriteFile(tmp, data); err != nil {
		return err
	}
	if err := osRename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
