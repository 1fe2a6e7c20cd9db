package crawler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/scanner"
	"github.com/moyu-x/fastclass/pkg/terms"
)

const headerSize = 262

// LocalCrawler 从本地目录 <Root>/<目录名> 导入图片，不访问网络。
// 目录名由搜索词经 terms.Sanitize 得到。
type LocalCrawler struct {
	Fs      afero.Fs
	Root    string
	Workers int
}

func NewLocalCrawler(fs afero.Fs, root string, workers int) *LocalCrawler {
	if workers < 1 {
		workers = internal.DefaultWorkers
	}
	return &LocalCrawler{Fs: fs, Root: root, Workers: workers}
}

func (c *LocalCrawler) Name() string { return "LOCAL" }

func (c *LocalCrawler) Crawl(ctx context.Context, req Request) (Sources, error) {
	srcDir := filepath.Join(c.Root, terms.Sanitize(req.Term, ""))
	if ok, _ := afero.DirExists(c.Fs, srcDir); !ok {
		logger.Get().Warn().Msgf("本地目录不存在，跳过: %s", srcDir)
		return Sources{}, nil
	}

	if err := c.Fs.MkdirAll(req.Folder, 0755); err != nil {
		return nil, fmt.Errorf("创建下载目录失败: %w", err)
	}

	maxNum := ClampMaxNum(req.MaxNum)
	var files []string
	// 跳过隐藏文件，例如 macOS 的 ._ 元数据文件
	walker := scanner.NewFileWalker(c.Fs)
	walker.IncludeHidden = false
	err := walker.Walk(srcDir, func(path string, info os.FileInfo) error {
		if len(files) < maxNum && c.isImage(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历本地目录失败: %w", err)
	}

	logger.Get().Info().Msgf("从 %s 导入 %d 个图片", srcDir, len(files))
	return c.importAll(ctx, files, req.Folder)
}

func (c *LocalCrawler) importAll(ctx context.Context, files []string, folder string) (Sources, error) {
	pool, err := ants.NewPool(c.Workers)
	if err != nil {
		logger.Get().Error().Err(err).Msg("创建 goroutine 池失败")
		return nil, err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sources  = make(Sources, len(files))
		reserved = make(map[string]bool, len(files))
	)

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		f := f
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			name := c.uniqueName(folder, filepath.Base(f), reserved)
			reserved[name] = true
			mu.Unlock()

			if err := c.copyFile(f, filepath.Join(folder, name)); err != nil {
				logger.Get().Error().Err(err).Msgf("导入文件失败: %s", f)
				return
			}

			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			mu.Lock()
			sources[name] = "file://" + filepath.ToSlash(abs)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			return sources, err
		}
	}
	wg.Wait()

	return sources, ctx.Err()
}

// uniqueName 目标目录中已存在同名文件时加 uuid 前缀
func (c *LocalCrawler) uniqueName(folder, name string, reserved map[string]bool) string {
	for {
		if !reserved[name] {
			if ok, _ := afero.Exists(c.Fs, filepath.Join(folder, name)); !ok {
				return name
			}
		}
		name = strings.SplitN(uuid.New().String(), "-", 2)[0] + "_" + name
	}
}

func (c *LocalCrawler) isImage(path string) bool {
	f, err := c.Fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}
	return filetype.IsImage(head[:n])
}

func (c *LocalCrawler) copyFile(src, dst string) error {
	in, err := c.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := c.Fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
