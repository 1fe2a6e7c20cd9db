package progress

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/logger"
)

const (
	ProgressFileName = ".fastclass-progress.txt"
)

// Tracker 记录 download 中已完成的搜索词，每行一个，只追加。
// 下载全部完成后 Close 删除进度文件，中断时文件保留供 --resume 使用。
type Tracker struct {
	fs       afero.Fs
	filePath string
	file     afero.File
	done     map[string]bool
	order    []string
	mu       sync.RWMutex
}

func NewTracker(fs afero.Fs, outDir string) (*Tracker, error) {
	if err := fs.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	t := &Tracker{
		fs:       fs,
		filePath: filepath.Join(outDir, ProgressFileName),
		done:     make(map[string]bool),
	}

	if err := t.load(); err != nil {
		logger.Get().Warn().Err(err).Msg("加载下载进度失败，将从头开始")
		t.done = make(map[string]bool)
		t.order = nil
	} else if len(t.done) > 0 {
		logger.Get().Info().Msgf("从进度文件加载了 %d 个已完成的类别", len(t.done))
	}

	file, err := fs.OpenFile(t.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	t.file = file
	return t, nil
}

func (t *Tracker) load() error {
	f, err := t.fs.Open(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" && !t.done[name] {
			t.done[name] = true
			t.order = append(t.order, name)
		}
	}
	return scanner.Err()
}

func (t *Tracker) IsDone(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done[name]
}

// MarkDone 记录一个已完成的类别并立即写入磁盘
func (t *Tracker) MarkDone(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done[name] {
		return nil
	}
	if _, err := t.file.WriteString(name + "\n"); err != nil {
		return err
	}
	if err := t.file.Sync(); err != nil {
		logger.Get().Error().Err(err).Msg("刷新进度文件失败")
	}

	t.done[name] = true
	t.order = append(t.order, name)
	return nil
}

// Done 按完成顺序返回已完成的类别
func (t *Tracker) Done() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.done)
}

// Close 关闭并删除进度文件
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.file.Close(); err != nil {
		return err
	}
	if err := t.fs.Remove(t.filePath); err != nil && !os.IsNotExist(err) {
		logger.Get().Error().Err(err).Msgf("删除进度文件失败: %s", t.filePath)
		return err
	}

	logger.Get().Debug().Msgf("进度文件已删除: %s", t.filePath)
	return nil
}

// Release 只关闭文件，保留进度供下次恢复
func (t *Tracker) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// Exists 检查进度文件是否存在
func Exists(fs afero.Fs, outDir string) bool {
	ok, _ := afero.Exists(fs, filepath.Join(outDir, ProgressFileName))
	return ok
}
