package app

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/imaging"
)

type ResizeOptions struct {
	InDir   string
	OutDir  string
	Size    int
	Quality int

	// URLs 以输入文件名为键
	URLs         map[string]string
	ShowProgress bool
}

// RunResize 缩放 InDir 目录下（不递归）的所有文件，无法解码的文件被跳过
func RunResize(fs afero.Fs, opts *ResizeOptions) (*imaging.BatchResult, error) {
	if opts.OutDir == "" {
		return nil, fmt.Errorf("必须指定输出目录")
	}
	if filepath.Clean(opts.InDir) == filepath.Clean(opts.OutDir) {
		return nil, fmt.Errorf("输出目录不能与输入目录相同: %s", opts.OutDir)
	}

	files, err := listFiles(fs, opts.InDir)
	if err != nil {
		return nil, err
	}

	n := imaging.NewNormalizer(fs, opts.Size)
	if opts.Size <= 0 {
		n.Box = imaging.NoResize
	}
	if opts.Quality > 0 {
		n.Quality = opts.Quality
	}
	n.ShowProgress = opts.ShowProgress

	return n.ResizeAll(files, opts.OutDir, opts.URLs)
}

// listFiles 返回 dir 下的普通文件，按文件名排序
func listFiles(fs afero.Fs, dir string) ([]string, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var files []string
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, info.Name()))
	}
	sort.Strings(files)
	return files, nil
}
