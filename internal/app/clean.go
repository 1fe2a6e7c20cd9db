package app

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/database"
	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/report"
	"github.com/moyu-x/fastclass/pkg/scanner"
	"github.com/moyu-x/fastclass/pkg/session"
	"github.com/moyu-x/fastclass/tui"
)

const lockFileName = ".fastclass.lock"

var ErrLocked = errors.New("该目录正在被另一个标注会话使用")

// CleanConfig 是标注会话的配置，构造后调用一次 Validate
type CleanConfig struct {
	InFolder  string
	OutFolder string
	Copy      bool
	Box       image.Point
}

// Validate 检查输入目录，补全默认输出目录与尺寸
func (c *CleanConfig) Validate(fs afero.Fs) error {
	if c.InFolder == "" {
		return fmt.Errorf("必须指定输入目录")
	}
	c.InFolder = filepath.Clean(c.InFolder)

	ok, err := afero.DirExists(fs, c.InFolder)
	if err != nil {
		return fmt.Errorf("检查输入目录失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("输入目录不存在: %s", c.InFolder)
	}

	if c.OutFolder == "" {
		c.OutFolder = report.DefaultOutFolder(c.InFolder)
	}
	c.OutFolder = filepath.Clean(c.OutFolder)
	if c.OutFolder == c.InFolder {
		return fmt.Errorf("输出目录不能与输入目录相同: %s", c.OutFolder)
	}

	if c.Box.X <= 0 || c.Box.Y <= 0 {
		c.Box = image.Pt(internal.DefaultImageSize, internal.DefaultImageSize)
	}
	return nil
}

// LabelUI 运行交互界面，返回 nil 报告表示用户中途退出
type LabelUI func(sess *session.Session, opts tui.Options) (*session.Report, error)

type CleanOptions struct {
	Config CleanConfig
	Resume bool
	// DBPath 为空时不保存标注
	DBPath string
	UI     LabelUI
}

type CleanResult struct {
	Total      int
	Classified int
	Restored   int
	Finished   bool
	Report     *report.Result
}

// RunClean 对输入目录中的图片运行一次标注会话，结束时写出报告并按需复制文件
func RunClean(fs afero.Fs, opts *CleanOptions) (*CleanResult, error) {
	cfg := opts.Config
	if err := cfg.Validate(fs); err != nil {
		return nil, err
	}

	unlock, err := lockFolder(fs, cfg.InFolder)
	if err != nil {
		return nil, err
	}
	defer unlock()

	files, err := scanner.ListImages(fs, cfg.InFolder)
	if err != nil {
		return nil, fmt.Errorf("读取输入目录失败: %w", err)
	}
	sess, err := session.New(files, cfg.Box)
	if err != nil {
		return nil, err
	}
	logger.Get().Info().Msgf("找到 %d 个图片: %s", len(files), cfg.InFolder)

	res := &CleanResult{Total: sess.Total()}

	folderKey := folderID(cfg.InFolder)

	var db *database.Database
	if opts.DBPath != "" {
		db, err = database.NewDatabase(opts.DBPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if opts.Resume {
			if res.Restored, err = restoreLabels(db, folderKey, cfg.InFolder, sess); err != nil {
				return nil, err
			}
			sess.Seek()
			logger.Get().Info().Msgf("恢复了 %d 个标注", res.Restored)
		} else if err := db.Clear(folderKey); err != nil {
			return nil, err
		}
	}

	ui := opts.UI
	if ui == nil {
		ui = tui.Run
	}

	uiOpts := tui.Options{Folder: folderKey}
	if db != nil {
		uiOpts.Store = labelStore{db}
	}
	rep, err := ui(sess, uiOpts)
	res.Classified = sess.Classified()
	if err != nil {
		return res, err
	}
	if rep == nil {
		logger.Get().Info().Msg("会话未完成，标注已保存")
		return res, nil
	}
	res.Finished = true

	res.Report, err = report.NewWriter(fs).Write(*rep, report.Options{
		InFolder:  cfg.InFolder,
		OutFolder: cfg.OutFolder,
		Copy:      cfg.Copy,
	})

	var cerr *report.CopyError
	if db != nil && (err == nil || errors.As(err, &cerr)) {
		if clearErr := db.Clear(folderKey); clearErr != nil {
			logger.Get().Warn().Err(clearErr).Msg("清除已保存的标注失败")
		}
	}
	return res, err
}

// lockFolder 防止同一目录同时运行两个会话。锁文件只能建在真实文件系统上。
func lockFolder(fs afero.Fs, dir string) (func(), error) {
	if _, ok := fs.(*afero.OsFs); !ok {
		return func() {}, nil
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("锁定输入目录失败: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}, nil
}

// folderID 返回目录的绝对路径并解析符号链接，作为数据库中的分组键
func folderID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// labelStore 以文件名保存标注，输入目录以相对或绝对路径给出时都能恢复
type labelStore struct {
	db *database.Database
}

func (s labelStore) Save(folder, path, label string) error {
	return s.db.Save(folder, filepath.Base(path), label)
}

func restoreLabels(db *database.Database, folder, inFolder string, sess *session.Session) (int, error) {
	saved, err := db.Load(folder)
	if err != nil {
		return 0, err
	}
	labels := make(map[string]session.Label, len(saved))
	for name, s := range saved {
		if l, ok := session.ParseLabel(s); ok {
			labels[filepath.Join(inFolder, name)] = l
		}
	}
	return sess.Restore(labels)
}
