package records

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ketidesk/internal/model"
)

func newTestStore() *Store {
	return NewStore("", nil)
}

// writeWorkbook 在临时目录生成总表，rows[0] 为表头
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "科研课题管理总表.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func fullHeader() []interface{} {
	out := make([]interface{}, len(model.Columns))
	for i, c := range model.Columns {
		out[i] = c
	}
	return out
}

// fullRow 按标准列顺序构造一行
func fullRow(values map[string]interface{}) []interface{} {
	out := make([]interface{}, len(model.Columns))
	for i, c := range model.Columns {
		if v, ok := values[c]; ok {
			out[i] = v
		} else {
			out[i] = ""
		}
	}
	return out
}

func sampleTable(t *testing.T, s *Store) model.Table {
	t.Helper()
	var tbl model.Table
	var err error
	for _, f := range []model.Fields{
		{model.ColProjectID: "P1", model.ColTitle: "桥梁检测", model.ColStatus: "在研", model.ColStartDate: "2024-03-01", model.ColExternalFund: "100"},
		{model.ColProjectID: "X", model.ColTitle: "隧道", model.ColStatus: "申报"},
		{model.ColProjectID: "P3", model.ColTitle: "边坡监测", model.ColStatus: "在研", model.ColLevel: "省部级"},
	} {
		tbl, _, err = s.Insert(tbl, f)
		require.NoError(t, err)
	}
	return tbl
}

func diagsContain(ds Diagnostics, substr string) bool {
	for _, d := range ds {
		if strings.Contains(d.String(), substr) {
			return true
		}
	}
	return false
}
