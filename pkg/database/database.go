package database

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moyu-x/fastclass/pkg/logger"
)

// LabelRecord 保存某个目录中一张图片的标注，用于中断后恢复
type LabelRecord struct {
	ID        int64     `gorm:"primaryKey"`
	Folder    string    `gorm:"uniqueIndex:idx_folder_path;not null"`
	Path      string    `gorm:"uniqueIndex:idx_folder_path;not null"`
	Label     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (LabelRecord) TableName() string {
	return "labels"
}

type Database struct {
	db    *gorm.DB
	cache map[string]map[string]string
	mu    sync.RWMutex
}

func NewDatabase(dbPath string) (*Database, error) {
	expandedPath, err := ExpandPath(dbPath)
	if err != nil {
		logger.Get().Error().Err(err).Msg("扩展数据库路径失败")
		return nil, err
	}

	logger.Get().Info().Msgf("初始化数据库，路径: %s", expandedPath)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		logger.Get().Error().Err(err).Msgf("创建数据库目录失败: %s", filepath.Dir(expandedPath))
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(expandedPath+"?_journal_mode=WAL"), &gorm.Config{})
	if err != nil {
		logger.Get().Error().Err(err).Msg("打开数据库连接失败")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Get().Error().Err(err).Msg("获取数据库连接失败")
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&LabelRecord{}); err != nil {
		logger.Get().Error().Err(err).Msg("创建数据库表失败")
		return nil, err
	}

	logger.Get().Debug().Msg("数据库初始化完成")
	return &Database{
		db:    db,
		cache: make(map[string]map[string]string),
	}, nil
}

// ExpandPath 展开 ~/ 开头的路径
func ExpandPath(path string) (string, error) {
	if len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\') {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Save 写入或覆盖 folder 下 path 的标注
func (d *Database) Save(folder, path, label string) error {
	rec := &LabelRecord{
		Folder:    folder,
		Path:      path,
		Label:     label,
		UpdatedAt: time.Now(),
	}

	err := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "folder"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		logger.Get().Error().Err(err).Msgf("保存标注失败: %s", path)
		return err
	}

	d.mu.Lock()
	if m, ok := d.cache[folder]; ok {
		m[path] = label
	}
	d.mu.Unlock()

	logger.Get().Trace().Msgf("保存标注: %s -> %s", path, label)
	return nil
}

// Load 返回 folder 下所有已保存的标注，键为图片路径
func (d *Database) Load(folder string) (map[string]string, error) {
	d.mu.RLock()
	cached, ok := d.cache[folder]
	d.mu.RUnlock()
	if ok {
		return copyMap(cached), nil
	}

	var records []LabelRecord
	if err := d.db.Where("folder = ?", folder).Find(&records).Error; err != nil {
		logger.Get().Error().Err(err).Msgf("查询标注失败: %s", folder)
		return nil, err
	}

	labels := make(map[string]string, len(records))
	for _, r := range records {
		labels[r.Path] = r.Label
	}

	d.mu.Lock()
	d.cache[folder] = labels
	d.mu.Unlock()

	logger.Get().Debug().Msgf("从数据库加载 %d 条标注: %s", len(labels), folder)
	return copyMap(labels), nil
}

// Clear 删除 folder 下所有标注，会话正常结束后调用
func (d *Database) Clear(folder string) error {
	if err := d.db.Where("folder = ?", folder).Delete(&LabelRecord{}).Error; err != nil {
		logger.Get().Error().Err(err).Msgf("清除标注失败: %s", folder)
		return err
	}

	d.mu.Lock()
	delete(d.cache, folder)
	d.mu.Unlock()
	return nil
}

func (d *Database) Close() error {
	logger.Get().Debug().Msg("关闭数据库连接")
	sqlDB, err := d.db.DB()
	if err != nil {
		logger.Get().Error().Err(err).Msg("获取数据库连接失败")
		return err
	}
	return sqlDB.Close()
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
