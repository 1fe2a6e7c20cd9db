package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/moyu-x/fastclass/internal"
)

type Config struct {
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Performance struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"performance"`
	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`
	Image struct {
		Size    int `mapstructure:"size"`
		Quality int `mapstructure:"quality"`
	} `mapstructure:"image"`
	Download struct {
		MaxNum    int    `mapstructure:"maxnum"`
		OutPath   string `mapstructure:"outpath"`
		LocalRoot string `mapstructure:"local_root"`
	} `mapstructure:"download"`
}

var cfg Config

// Load 读取配置文件。file 非空时只读取该文件，否则按默认路径搜索 config.yaml。
// 找不到配置文件不算错误，此时全部使用默认值。
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.fastclass")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fastclass")
	}

	v.SetEnvPrefix("FASTCLASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	normalize(&c)

	cfg = c
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", internal.DefaultDatabasePath)
	v.SetDefault("performance.workers", internal.DefaultWorkers)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("image.size", internal.DefaultImageSize)
	v.SetDefault("image.quality", internal.DefaultJPEGQuality)
	v.SetDefault("download.maxnum", internal.MaxCrawlNum)
	v.SetDefault("download.outpath", internal.DefaultOutPath)
	v.SetDefault("download.local_root", "")
}

func normalize(c *Config) {
	if c.Performance.Workers < 1 {
		c.Performance.Workers = 1
	}
	if c.Image.Size < 0 {
		c.Image.Size = 0
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		c.Image.Quality = internal.DefaultJPEGQuality
	}
	if c.Download.MaxNum > internal.MaxCrawlNum {
		c.Download.MaxNum = internal.MaxCrawlNum
	}
}

func Get() *Config {
	return &cfg
}
