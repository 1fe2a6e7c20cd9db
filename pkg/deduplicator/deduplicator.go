package deduplicator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/hasher"
	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/scanner"
)

type Options struct {
	Mode      internal.OperationMode
	TargetDir string
	DryRun    bool
	Workers   int
}

// Result 是一次去重的结果
type Result struct {
	Stats internal.ProcessStats

	// Removed 为删除或移动的重复文件数
	Removed int

	// Groups 只包含成员多于一个的分组，首个路径为保留文件
	Groups map[string][]string

	// Errors 收集单个文件的哈希或删除失败，不影响其余文件
	Errors []error
}

// Err 合并所有单文件错误
func (r *Result) Err() error {
	return errors.Join(r.Errors...)
}

type Resolver struct {
	fs     afero.Fs
	hasher *hasher.Hasher
	opts   Options
	sizes  map[string]int64
}

func NewResolver(fs afero.Fs, opts Options) *Resolver {
	if opts.Mode == "" {
		opts.Mode = internal.ModeDelete
	}
	if opts.Workers < 1 {
		opts.Workers = internal.DefaultWorkers
	}
	logger.Get().Debug().Msgf("创建去重处理器，模式: %s", opts.Mode)
	return &Resolver{
		fs:     fs,
		hasher: hasher.New(fs),
		opts:   opts,
	}
}

// Resolve 遍历 root 下所有普通文件，按内容摘要分组，每组保留遍历中最先出现的文件，
// 其余文件被删除（或移动）。删除不可恢复。
//
// 遍历顺序决定哪一个文件被保留；afero 按字典序遍历，同一目录树上结果稳定，
// 但不同平台或遍历实现下可能保留不同的文件。
func (d *Resolver) Resolve(root string) (*Result, error) {
	if d.opts.Mode == internal.ModeMove && d.opts.TargetDir == "" {
		return nil, fmt.Errorf("move 模式必须指定目标目录")
	}

	res := &Result{
		Stats:  internal.ProcessStats{StartTime: time.Now()},
		Groups: make(map[string][]string),
	}

	var tasks []hasher.HashTask
	walker := scanner.NewFileWalker(d.fs)
	err := walker.Walk(root, func(path string, info os.FileInfo) error {
		if d.isUnderTarget(path) {
			return nil
		}
		tasks = append(tasks, hasher.HashTask{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录失败: %w", err)
	}

	results, err := hasher.HashAll(d.hasher, d.opts.Workers, tasks)
	if err != nil {
		return nil, err
	}

	groups, order := d.group(results, res)

	for _, digest := range order {
		paths := groups[digest]
		res.Stats.Kept++
		if len(paths) < 2 {
			continue
		}
		res.Groups[digest] = append([]string(nil), paths...)
		for _, path := range paths[1:] {
			d.handleDuplicate(path, digest, res)
		}
	}

	res.Stats.EndTime = time.Now()
	logger.Get().Info().Msgf("去重完成: 扫描 %d 个文件，重复 %d 个，耗时 %v",
		res.Stats.TotalProcessed, res.Removed, res.Stats.EndTime.Sub(res.Stats.StartTime))
	return res, nil
}

// group 按遍历顺序建立摘要到路径的映射，order 记录摘要首次出现的顺序
func (d *Resolver) group(results []hasher.HashResult, res *Result) (map[string][]string, []string) {
	groups := make(map[string][]string, len(results))
	order := make([]string, 0, len(results))
	sizes := make(map[string]int64, len(results))

	for _, r := range results {
		if r.Error != nil {
			logger.Get().Error().Err(r.Error).Msgf("处理文件失败: %s", r.Path)
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", r.Path, r.Error))
			res.Stats.Failed++
			continue
		}
		res.Stats.TotalProcessed++
		if _, ok := groups[r.Digest]; !ok {
			order = append(order, r.Digest)
		}
		groups[r.Digest] = append(groups[r.Digest], r.Path)
		sizes[r.Path] = r.Size
	}
	d.sizes = sizes
	return groups, order
}

func (d *Resolver) handleDuplicate(path, digest string, res *Result) {
	size := d.sizes[path]

	if d.opts.DryRun {
		logger.Get().Info().Msgf("发现重复: %s (预览模式，未修改)", path)
		res.Removed++
		return
	}

	switch d.opts.Mode {
	case internal.ModeMove:
		dst, err := d.moveFile(path, digest)
		if err != nil {
			logger.Get().Error().Err(err).Msgf("移动文件失败: %s", path)
			res.Errors = append(res.Errors, fmt.Errorf("移动 %s: %w", path, err))
			res.Stats.Failed++
			return
		}
		res.Stats.Moved++
		logger.Get().Debug().Msgf("发现重复: %s (已移动到 %s)", path, dst)
	default:
		if err := d.fs.Remove(path); err != nil {
			logger.Get().Error().Err(err).Msgf("删除文件失败: %s", path)
			res.Errors = append(res.Errors, fmt.Errorf("删除 %s: %w", path, err))
			res.Stats.Failed++
			return
		}
		res.Stats.Deleted++
		logger.Get().Debug().Msgf("发现重复: %s (已删除)", path)
	}

	res.Removed++
	res.Stats.FreedSpace += size
}

func (d *Resolver) moveFile(srcPath, hash string) (string, error) {
	if err := d.fs.MkdirAll(d.opts.TargetDir, 0755); err != nil {
		return "", err
	}

	ext := filepath.Ext(srcPath)
	baseName := hash[:8] + "_" + hash[8:]
	dstPath := filepath.Join(d.opts.TargetDir, baseName+ext)

	conflictCounter := 0
	for {
		if _, err := d.fs.Stat(dstPath); os.IsNotExist(err) {
			break
		} else if err != nil {
			return "", fmt.Errorf("检查目标文件失败: %w", err)
		}

		conflictCounter++
		dstPath = filepath.Join(d.opts.TargetDir, fmt.Sprintf("%s_%d%s", baseName, conflictCounter, ext))

		if conflictCounter >= 100 {
			return "", fmt.Errorf("无法生成唯一文件名，已尝试 %d 次", conflictCounter)
		}
	}

	logger.Get().Debug().Msgf("移动文件: %s -> %s", srcPath, dstPath)
	return dstPath, d.fs.Rename(srcPath, dstPath)
}

// 移动模式下目标目录位于扫描目录内时，不扫描目标目录
func (d *Resolver) isUnderTarget(path string) bool {
	if d.opts.Mode != internal.ModeMove || d.opts.TargetDir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(d.opts.TargetDir), path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
