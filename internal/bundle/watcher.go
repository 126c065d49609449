package bundle

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ticket-template/internal/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher 监听模板包文件 写入停止 debounce 时长后重新导入
type Watcher struct {
	watcher  *fsnotify.Watcher
	importer *Importer
	path     string
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	done    chan struct{}
	onApply func(Report, error)
}

// NewWatcher watches the directory holding path, since editors usually
// replace files by rename rather than writing them in place.
func NewWatcher(importer *Importer, path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		watcher:  w,
		importer: importer,
		path:     filepath.Clean(abs),
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// OnApply registers a callback invoked after every re-import.
func (bw *Watcher) OnApply(fn func(Report, error)) {
	bw.mu.Lock()
	bw.onApply = fn
	bw.mu.Unlock()
}

// Start 启动目录监听
func (bw *Watcher) Start() error {
	dir := filepath.Dir(bw.path)
	if err := bw.watcher.Add(dir); err != nil {
		logger.Error("添加模板包目录监控失败: %s, 错误: %v", dir, err)
		return err
	}
	logger.Info("开始监控模板包: %s (防抖 %v)", bw.path, bw.debounce)
	go bw.handleEvents()
	return nil
}

// Close 停止监听并取消待执行的导入
func (bw *Watcher) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return nil
	}
	bw.closed = true
	if bw.timer != nil {
		bw.timer.Stop()
		bw.timer = nil
	}
	close(bw.done)
	bw.mu.Unlock()
	return bw.watcher.Close()
}

func (bw *Watcher) handleEvents() {
	for {
		select {
		case <-bw.done:
			return
		case event, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if bw.isBundleEvent(event) {
				logger.Debug("模板包变化: %s, 操作: %s", event.Name, event.Op.String())
				bw.schedule()
			}
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("模板包监控错误: %v", err)
		}
	}
}

func (bw *Watcher) isBundleEvent(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || filepath.Clean(name) != bw.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// schedule 重置防抖定时器
func (bw *Watcher) schedule() {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return
	}
	if bw.timer != nil {
		bw.timer.Stop()
	}
	bw.timer = time.AfterFunc(bw.debounce, bw.reload)
}

func (bw *Watcher) reload() {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return
	}
	bw.timer = nil
	hook := bw.onApply
	bw.mu.Unlock()

	report, err := bw.importer.ImportFile(bw.path)
	if err != nil {
		logger.Warn("模板包重新导入失败: %s, 错误: %v", bw.path, err)
	}
	if hook != nil {
		hook(report, err)
	}
}
