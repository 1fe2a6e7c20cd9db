package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moyu-x/fastclass/config"
	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/internal/app"
	"github.com/moyu-x/fastclass/pkg/crawler"
	"github.com/moyu-x/fastclass/pkg/logger"
)

var downloadCmd = &cobra.Command{
	Use:   "download <terms-file>",
	Short: "按搜索词获取图片并生成数据集",
	Long: `读取 terms 文件（第一行为表头，之后每行 "搜索词[,目录名中要去掉的词]"），
对每个搜索词:
  1. 用选定的抓取器获取图片到原始目录
  2. 删除内容重复的图片
  3. 缩放为固定大小的 JPEG 写入 <outpath>/<类别>，来源写入 EXIF
  4. 在 <outpath>/<类别>.log 中记录每张图片的来源

中断后可用 --resume 跳过已完成的类别。`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	flags := cmd.Flags()

	crawlers, _ := flags.GetStringSlice("crawler")
	keep, _ := flags.GetBool("keep")
	overwrite, _ := flags.GetBool("overwrite")
	resume, _ := flags.GetBool("resume")

	maxNum := cfg.Download.MaxNum
	if flags.Changed("maxnum") {
		maxNum, _ = flags.GetInt("maxnum")
	}
	size := cfg.Image.Size
	if flags.Changed("size") {
		size, _ = flags.GetInt("size")
	}
	outPath := cfg.Download.OutPath
	if flags.Changed("outpath") {
		outPath, _ = flags.GetString("outpath")
	}
	localRoot := cfg.Download.LocalRoot
	if flags.Changed("local-root") {
		localRoot, _ = flags.GetString("local-root")
	}

	if maxNum > internal.MaxCrawlNum {
		logger.Get().Warn().Msgf("maxnum 超过上限，使用 %d", internal.MaxCrawlNum)
	}

	fs := afero.NewOsFs()
	registry := crawler.NewRegistry()
	if localRoot != "" {
		registry.Register(crawler.NewLocalCrawler(fs, localRoot, cfg.Performance.Workers))
	}
	if len(registry.Names()) == 0 {
		return fmt.Errorf("没有可用的抓取器，请使用 --local-root 指定本地图片库")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, err := app.RunDownload(ctx, fs, registry, &app.DownloadOptions{
		TermsFile:    args[0],
		OutPath:      outPath,
		Crawlers:     crawlers,
		MaxNum:       maxNum,
		Size:         size,
		Quality:      cfg.Image.Quality,
		Workers:      cfg.Performance.Workers,
		Keep:         keep,
		Overwrite:    overwrite,
		Resume:       resume,
		ShowProgress: isatty.IsTerminal(os.Stderr.Fd()),
	})
	printDownloadStats(cmd, stats)

	if errors.Is(err, context.Canceled) {
		logger.Get().Warn().Msg("下载被中断，使用 --resume 继续")
	}
	return err
}

func printDownloadStats(cmd *cobra.Command, stats []internal.ClassStats) {
	if len(stats) == 0 {
		return
	}
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []string{
			st.Term,
			st.Folder,
			strconv.Itoa(st.Crawled),
			strconv.Itoa(st.Duplicates),
			strconv.Itoa(st.Resized),
			strconv.Itoa(st.Skipped),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"搜索词", "类别", "获取", "重复", "写入", "跳过"},
		rows, 2, 3, 4, 5,
	))
}

func init() {
	downloadCmd.Flags().StringSliceP("crawler", "c", []string{crawler.All}, "使用的抓取器，可多次指定，ALL 表示全部")
	downloadCmd.Flags().BoolP("keep", "k", false, "保留原始下载到 <outpath>.raw")
	downloadCmd.Flags().IntP("maxnum", "m", internal.MaxCrawlNum, "每个抓取器每个搜索词的最大数量（上限 1000）")
	downloadCmd.Flags().IntP("size", "s", internal.DefaultImageSize, "画布边长，0 表示保持原尺寸")
	downloadCmd.Flags().StringP("outpath", "o", internal.DefaultOutPath, "输出目录")
	downloadCmd.Flags().String("local-root", "", "本地图片库，子目录名与类别名一致")
	downloadCmd.Flags().Bool("overwrite", false, "输出目录已存在时删除后重新生成")
	downloadCmd.Flags().BoolP("resume", "r", false, "跳过上次已完成的类别")

	rootCmd.AddCommand(downloadCmd)
}
