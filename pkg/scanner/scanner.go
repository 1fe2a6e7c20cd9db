package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/logger"
)

// ImageSuffixes 是标注会话接受的扩展名（同时接受全小写与全大写形式）
var ImageSuffixes = []string{"jpg", "jpeg", "png", "tif", "tiff"}

type FileWalker struct {
	Fs            afero.Fs
	IncludeHidden bool
}

func NewFileWalker(fs afero.Fs) *FileWalker {
	return &FileWalker{
		Fs:            fs,
		IncludeHidden: true,
	}
}

// Walk 按字典序遍历 root 下的所有普通文件。
// 单个条目的访问错误只记录日志并跳过；root 本身不可访问时返回错误。
func (w *FileWalker) Walk(root string, callback func(path string, info os.FileInfo) error) error {
	if _, err := w.Fs.Stat(root); err != nil {
		return err
	}

	return afero.Walk(w.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Get().Debug().Err(err).Str("path", path).Msg("访问路径出错")
			return nil
		}

		if !w.IncludeHidden && path != root && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return callback(path, info)
	})
}

func (w *FileWalker) CountFiles(dirs []string) (int, error) {
	logger.Get().Debug().Msgf("开始统计文件数量，共 %d 个目录", len(dirs))

	count := 0
	for _, dir := range dirs {
		err := w.Walk(dir, func(path string, info os.FileInfo) error {
			count++
			return nil
		})
		if err != nil {
			logger.Get().Error().Err(err).Msgf("扫描目录失败: %s", dir)
			return 0, err
		}
	}

	logger.Get().Debug().Msgf("文件统计完成，共找到 %d 个文件", count)
	return count, nil
}

// ListImages 列出 dir 目录下（不递归）扩展名在白名单中的图片，按路径排序并去重
func ListImages(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(entries))
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if seen[p] {
			continue
		}
		seen[p] = true
		files = append(files, p)
	}

	sort.Strings(files)
	return files, nil
}

// IsImageName 判断文件名扩展名是否在白名单内。
// 只匹配全小写或全大写形式，例如 .jpg 与 .JPG，不匹配 .Jpg。
func IsImageName(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, s := range ImageSuffixes {
		if ext == s || ext == strings.ToUpper(s) {
			return true
		}
	}
	return false
}
