package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/session"
)

const header = "file;rank"

type Options struct {
	InFolder  string
	OutFolder string
	Copy      bool
}

type Result struct {
	AllPath   string
	CleanPath string
	Copied    int
}

// CopyError 表示复制阶段部分文件失败。已复制的文件不会回滚。
type CopyError struct {
	Failed []string
	Errs   []error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%d 个文件复制失败，部分文件可能没有被复制", len(e.Failed))
}

func (e *CopyError) Unwrap() []error { return e.Errs }

type Writer struct {
	Fs afero.Fs
}

func NewWriter(fs afero.Fs) *Writer {
	return &Writer{Fs: fs}
}

// Paths 返回 all 与 clean 两个报告的路径，位于输入目录的上级目录，
// 文件名为输入目录名（空格替换为下划线）加 _report_all.csv / _report_clean.csv
func Paths(inFolder string) (string, string) {
	in := filepath.Clean(inFolder)
	base := filepath.Join(filepath.Dir(in), strings.ReplaceAll(filepath.Base(in), " ", "_"))
	return base + "_report_all.csv", base + "_report_clean.csv"
}

// DefaultOutFolder 返回 <parent>/<name>.clean
func DefaultOutFolder(inFolder string) string {
	return filepath.Clean(inFolder) + ".clean"
}

// Write 写出两个报告，Copy 为 true 时把 clean 视图中的文件复制到 OutFolder。
// 重复执行会覆盖报告。复制失败以 *CopyError 返回。
func (w *Writer) Write(rep session.Report, opts Options) (*Result, error) {
	allPath, cleanPath := Paths(opts.InFolder)
	res := &Result{AllPath: allPath, CleanPath: cleanPath}

	if err := w.writeCSV(allPath, rep.All); err != nil {
		return nil, err
	}
	if err := w.writeCSV(cleanPath, rep.Clean); err != nil {
		return nil, err
	}
	logger.Get().Info().Msgf("报告已写入: %s, %s", allPath, cleanPath)

	if !opts.Copy {
		return res, nil
	}

	outFolder := opts.OutFolder
	if outFolder == "" {
		outFolder = DefaultOutFolder(opts.InFolder)
	}
	if err := w.Fs.MkdirAll(outFolder, 0755); err != nil {
		return res, fmt.Errorf("创建输出目录失败: %w", err)
	}

	var cerr CopyError
	for _, row := range rep.Clean {
		dst := filepath.Join(outFolder, filepath.Base(row.Path))
		if err := w.copyFile(row.Path, dst); err != nil {
			logger.Get().Error().Err(err).Msgf("复制文件失败: %s", row.Path)
			cerr.Failed = append(cerr.Failed, row.Path)
			cerr.Errs = append(cerr.Errs, err)
			continue
		}
		res.Copied++
	}
	logger.Get().Info().Msgf("已复制 %d 个文件到 %s", res.Copied, outFolder)

	if len(cerr.Failed) > 0 {
		return res, &cerr
	}
	return res, nil
}

// writeCSV 写出以分号分隔的报告，行按路径排序。字段原样写出，不加引号
func (w *Writer) writeCSV(path string, rows []session.Row) error {
	sorted := append([]session.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	f, err := w.Fs.Create(path)
	if err != nil {
		return fmt.Errorf("创建报告失败: %w", err)
	}

	bw := bufio.NewWriter(f)
	_, _ = bw.WriteString(header + "\n")
	for _, r := range sorted {
		_, _ = bw.WriteString(r.Path + ";" + r.Rank + "\n")
	}

	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("写入报告失败: %w", err)
	}
	return f.Close()
}

func (w *Writer) copyFile(src, dst string) (err error) {
	in, err := w.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := w.Fs.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	_, err = io.Copy(out, in)
	return err
}
