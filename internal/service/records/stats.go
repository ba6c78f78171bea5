package records

import (
	"fmt"
	"sort"
	"strings"

	"ketidesk/internal/model"
)

// GroupCount 按维度分组的统计结果
type GroupCount struct {
	Keys        []string `json:"keys"`
	Count       int      `json:"count"`
	TotalBudget float64  `json:"totalBudget"`
}

// CountBy 按一个或多个列统计课题数量与总预算，按数量降序排列
func CountBy(t model.Table, columns ...string) ([]GroupCount, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no dimension", ErrUnknownColumn)
	}
	for _, c := range columns {
		if !model.IsColumn(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
	}

	groups := make(map[string]*GroupCount)
	order := make([]string, 0)
	for i := range t {
		keys := make([]string, len(columns))
		for j, c := range columns {
			keys[j], _ = t[i].Text(c)
		}
		k := strings.Join(keys, "\x00")
		g, ok := groups[k]
		if !ok {
			g = &GroupCount{Keys: keys}
			groups[k] = g
			order = append(order, k)
		}
		g.Count++
		g.TotalBudget += t[i].TotalBudget
	}

	out := make([]GroupCount, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.Join(out[i].Keys, "|") < strings.Join(out[j].Keys, "|")
	})
	return out, nil
}
