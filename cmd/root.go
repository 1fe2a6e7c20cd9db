package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/moyu-x/fastclass/config"
	"github.com/moyu-x/fastclass/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	verbose  bool
)

// 带有此注解的命令运行交互界面，日志不输出到终端
const annotationTUI = "tui"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fastclass",
	Short: "图片数据集的下载、去重、缩放与人工标注工具",
	Long: `FastClass 是一个用于整理图片分类数据集的命令行工具。

主要功能:
- download: 按搜索词批量获取图片，去重后统一缩放，并记录每张图片的来源
- dedup:    按文件内容去除目录中的重复文件
- resize:   把目录中的图片等比缩放并居中填充为固定大小的 JPEG
- clean:    在终端中逐张浏览图片并打分或标记删除，生成报告`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	file := cfg.Logging.File
	if cmd.Flags().Changed("log-file") {
		file = logFile
	}

	if cmd.Annotations[annotationTUI] == "true" {
		return logger.InitFileOnly(level, file)
	}
	if err := logger.Init(level, file); err != nil {
		return err
	}
	logger.Get().Debug().Msgf("配置加载完成，日志级别: %s", level)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件 (默认搜索 $HOME/.fastclass/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "日志文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "显示调试日志")
}
