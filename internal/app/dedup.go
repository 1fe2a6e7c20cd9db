package app

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/deduplicator"
	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/scanner"
)

type DedupOptions struct {
	SourceDirs []string
	Mode       string
	TargetDir  string
	Workers    int
	DryRun     bool
}

// RunDedup 依次对每个目录去重，单个目录内部独立分组
func RunDedup(fs afero.Fs, opts *DedupOptions) ([]*deduplicator.Result, error) {
	if len(opts.SourceDirs) == 0 {
		return nil, fmt.Errorf("必须指定至少一个目录")
	}

	mode := internal.ModeDelete
	if opts.Mode != "" {
		m, ok := internal.ParseOperationMode(opts.Mode)
		if !ok {
			return nil, fmt.Errorf("无效的操作模式: %s（可选 delete 或 move）", opts.Mode)
		}
		mode = m
	}
	if mode == internal.ModeMove && opts.TargetDir == "" {
		return nil, fmt.Errorf("使用 move 模式时必须指定 --target-dir")
	}

	logger.Get().Info().Msgf("操作模式: %s", mode)
	if opts.TargetDir != "" {
		logger.Get().Info().Msgf("目标目录: %s", opts.TargetDir)
	}
	if opts.DryRun {
		logger.Get().Info().Msg("=== 预览模式，不会实际修改文件 ===")
	}

	if total, err := scanner.NewFileWalker(fs).CountFiles(opts.SourceDirs); err == nil {
		logger.Get().Info().Msgf("找到 %d 个待处理文件", total)
	}

	resolver := deduplicator.NewResolver(fs, deduplicator.Options{
		Mode:      mode,
		TargetDir: opts.TargetDir,
		DryRun:    opts.DryRun,
		Workers:   opts.Workers,
	})

	var results []*deduplicator.Result
	for _, dir := range opts.SourceDirs {
		res, err := resolver.Resolve(dir)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
