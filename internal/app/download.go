package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/crawler"
	"github.com/moyu-x/fastclass/pkg/deduplicator"
	"github.com/moyu-x/fastclass/pkg/imaging"
	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/progress"
	"github.com/moyu-x/fastclass/pkg/terms"
)

var ErrOutputExists = errors.New("输出目录已存在，使用 --overwrite 覆盖或 --resume 继续")

type DownloadOptions struct {
	TermsFile string
	OutPath   string
	Crawlers  []string
	MaxNum    int
	Size      int
	Quality   int
	Workers   int

	// Keep 为 true 时原始下载保存在 <OutPath>.raw
	Keep      bool
	Overwrite bool
	Resume    bool

	ShowProgress bool
}

// RunDownload 对 terms 文件中的每个搜索词抓取图片、去重、缩放，
// 并在输出目录写入 <类别>.log 记录每个图片的来源。
func RunDownload(ctx context.Context, fs afero.Fs, registry *crawler.Registry, opts *DownloadOptions) ([]internal.ClassStats, error) {
	if opts.OutPath == "" {
		opts.OutPath = internal.DefaultOutPath
	}
	outPath := filepath.Clean(opts.OutPath)
	rawPath := outPath + ".raw"

	crawlers, err := registry.Resolve(opts.Crawlers)
	if err != nil {
		return nil, err
	}

	list, err := readTerms(fs, opts.TermsFile)
	if err != nil {
		return nil, err
	}

	exists, err := afero.Exists(fs, outPath)
	if err != nil {
		return nil, err
	}
	if exists && !opts.Resume {
		if !opts.Overwrite {
			return nil, ErrOutputExists
		}
		logger.Get().Info().Msgf("删除已有输出目录: %s", outPath)
		if err := fs.RemoveAll(outPath); err != nil {
			return nil, fmt.Errorf("删除输出目录失败: %w", err)
		}
		if err := fs.RemoveAll(rawPath); err != nil {
			return nil, fmt.Errorf("删除原始目录失败: %w", err)
		}
	}

	rawRoot := rawPath
	if !opts.Keep {
		rawRoot, err = afero.TempDir(fs, "", "fastclass-")
		if err != nil {
			return nil, fmt.Errorf("创建临时目录失败: %w", err)
		}
		defer fs.RemoveAll(rawRoot)
	}

	tracker, err := progress.NewTracker(fs, outPath)
	if err != nil {
		return nil, fmt.Errorf("创建进度文件失败: %w", err)
	}

	resolver := deduplicator.NewResolver(fs, deduplicator.Options{
		Mode:    internal.ModeDelete,
		Workers: opts.Workers,
	})
	normalizer := imaging.NewNormalizer(fs, opts.Size)
	if opts.Size <= 0 {
		normalizer.Box = imaging.NoResize
	}
	if opts.Quality > 0 {
		normalizer.Quality = opts.Quality
	}
	normalizer.ShowProgress = opts.ShowProgress

	var stats []internal.ClassStats
	for _, t := range list {
		if err := ctx.Err(); err != nil {
			_ = tracker.Release()
			return stats, err
		}

		folder := t.Folder()
		if tracker.IsDone(folder) {
			logger.Get().Info().Msgf("跳过已完成的类别: %s", folder)
			continue
		}

		st, err := downloadClass(ctx, fs, crawlers, resolver, normalizer, t, rawRoot, outPath, opts.MaxNum)
		if err != nil {
			_ = tracker.Release()
			return stats, fmt.Errorf("处理类别 %s 失败: %w", folder, err)
		}
		stats = append(stats, *st)

		if err := tracker.MarkDone(folder); err != nil {
			logger.Get().Warn().Err(err).Msgf("记录进度失败: %s", folder)
		}
	}

	if err := tracker.Close(); err != nil {
		logger.Get().Warn().Err(err).Msg("删除进度文件失败")
	}
	return stats, nil
}

func downloadClass(
	ctx context.Context,
	fs afero.Fs,
	crawlers []crawler.Crawler,
	resolver *deduplicator.Resolver,
	normalizer *imaging.Normalizer,
	t terms.Term,
	rawRoot, outPath string,
	maxNum int,
) (*internal.ClassStats, error) {
	folder := t.Folder()
	st := &internal.ClassStats{Term: t.Search, Folder: folder}
	logger.Get().Info().Msgf("处理类别 [%s]: 搜索词 %q", folder, t.Search)

	rawDir := filepath.Join(rawRoot, folder)
	// 重跑中断的类别时，旧的原始文件先清掉
	if err := fs.RemoveAll(rawDir); err != nil {
		return nil, err
	}

	sources, err := crawler.Run(ctx, crawlers, crawler.Request{
		Folder: rawDir,
		Term:   t.Search,
		MaxNum: maxNum,
	})
	if err != nil {
		return nil, err
	}
	st.Crawled = len(sources)

	if ok, _ := afero.DirExists(fs, rawDir); !ok {
		logger.Get().Warn().Msgf("类别 [%s] 没有下载到任何图片", folder)
		return st, nil
	}

	res, err := resolver.Resolve(rawDir)
	if err != nil {
		return nil, err
	}
	if rerr := res.Err(); rerr != nil {
		logger.Get().Warn().Err(rerr).Msgf("类别 [%s] 部分重复文件未能删除", folder)
	}
	st.Duplicates = res.Removed

	files, err := listFiles(fs, rawDir)
	if err != nil {
		return nil, err
	}

	batch, err := normalizer.ResizeAll(files, filepath.Join(outPath, folder), sources)
	if err != nil {
		return nil, err
	}
	st.Resized = batch.Written
	st.Skipped = batch.Skipped + batch.Failed

	if err := writeSourceLog(fs, filepath.Join(outPath, folder+".log"), batch.Sources); err != nil {
		return nil, err
	}
	return st, nil
}

func readTerms(fs afero.Fs, path string) ([]terms.Term, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 terms 文件失败: %w", err)
	}
	defer f.Close()

	list, err := terms.Parse(f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("terms 文件中没有搜索词: %s", path)
	}
	return list, nil
}

// writeSourceLog 写出 image,source 两列的 CSV，按文件名排序
func writeSourceLog(fs afero.Fs, path string, sources map[string]string) (err error) {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("创建来源记录失败: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	w := csv.NewWriter(f)
	if err := w.Write([]string{"image", "source"}); err != nil {
		return err
	}
	for _, name := range names {
		if err := w.Write([]string{name, sources[name]}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
