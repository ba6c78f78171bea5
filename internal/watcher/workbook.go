package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ketidesk/internal/logger"
)

// DefaultDebounce 外部程序保存时往往连续产生多次事件，合并为一次回调
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed 文件监听初始化失败
var ErrWatcherFailed = errors.New("failed to initialize workbook watcher")

// WorkbookWatcher 监听总表文件的外部修改
//
// 监听的是总表所在目录而不是文件本身：原子保存会用新文件替换旧文件，
// 直接监听文件会在第一次替换后失效。
type WorkbookWatcher struct {
	path     string
	debounce time.Duration
	onChange func()
	log      logger.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewWorkbookWatcher 创建监听器；debounce <= 0 时使用 DefaultDebounce
func NewWorkbookWatcher(path string, debounce time.Duration, onChange func(), log logger.Logger) (*WorkbookWatcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange callback is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving workbook path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &WorkbookWatcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		watcher:  w,
		stop:     make(chan struct{}),
	}, nil
}

// Start 开始监听，事件在后台 goroutine 中处理；ctx 取消或调用 Stop 后退出
func (w *WorkbookWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.log.Info("开始监听总表变更: %s", w.path)

	go w.processEvents(ctx)
	return nil
}

// Stop 停止监听并释放资源，可重复调用
func (w *WorkbookWatcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *WorkbookWatcher) processEvents(ctx context.Context) {
	defer w.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("总表监听出错: %v", err)
		}
	}
}

func (w *WorkbookWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// schedule 重置防抖计时器
func (w *WorkbookWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *WorkbookWatcher) fire() {
	select {
	case <-w.stop:
		return
	default:
	}
	w.log.Debug("检测到总表变更: %s", w.path)
	w.onChange()
}
