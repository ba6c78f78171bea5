package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 重命名结果标签
const (
	RenameRenamed  = "renamed"
	RenameNoop     = "noop"
	RenameConflict = "conflict"
	RenameFailed   = "failed"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics 课题同步相关的 Prometheus 指标
//
// 指标统一使用 ketidesk_ 前缀：
//   - ketidesk_folders_created_total          新建的课题目录数
//   - ketidesk_folder_renames_total{result}   目录重命名结果
//   - ketidesk_sync_failures_total            同步时单条记录失败数
//   - ketidesk_workbook_saves_total{result}   总表保存结果
//   - ketidesk_projects                       当前内存中的课题数
type Metrics struct {
	FoldersCreated prometheus.Counter
	FolderRenames  *prometheus.CounterVec
	SyncFailures   prometheus.Counter
	WorkbookSaves  *prometheus.CounterVec
	Projects       prometheus.Gauge
}

// NewMetrics 注册并返回全局指标（多次调用返回同一实例，避免重复注册 panic）
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			FoldersCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ketidesk_folders_created_total",
				Help: "Total number of project directories created",
			}),
			FolderRenames: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ketidesk_folder_renames_total",
				Help: "Project directory rename attempts by result",
			}, []string{"result"}),
			SyncFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ketidesk_sync_failures_total",
				Help: "Records whose directory could not be ensured during synchronization",
			}),
			WorkbookSaves: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ketidesk_workbook_saves_total",
				Help: "Workbook persist attempts by result",
			}, []string{"result"}),
			Projects: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "ketidesk_projects",
				Help: "Number of project records currently loaded",
			}),
		}
	})
	return globalMetrics
}

// 以下方法允许 nil 接收者，方便测试中不挂指标

func (m *Metrics) FolderCreated() {
	if m == nil {
		return
	}
	m.FoldersCreated.Inc()
}

func (m *Metrics) FolderRenamed(result string) {
	if m == nil {
		return
	}
	m.FolderRenames.WithLabelValues(result).Inc()
}

func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.SyncFailures.Inc()
}

func (m *Metrics) WorkbookSaved(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.WorkbookSaves.WithLabelValues(result).Inc()
}

func (m *Metrics) SetProjects(n int) {
	if m == nil {
		return
	}
	m.Projects.Set(float64(n))
}
