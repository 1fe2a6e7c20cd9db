package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moyu-x/fastclass/config"
	"github.com/moyu-x/fastclass/internal/app"
	"github.com/moyu-x/fastclass/pkg/deduplicator"
	"github.com/moyu-x/fastclass/pkg/logger"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <directories...>",
	Short: "检测并删除/移动重复文件",
	Long: `遍历指定目录中的所有文件，使用 xxHash 计算内容摘要并检测重复文件。
每组相同内容的文件只保留遍历中最先出现的一个，其余被删除或移动到指定目录。
删除不可恢复，建议先使用 --dry-run 预览。`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDedup,
}

func runDedup(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	targetDir, _ := cmd.Flags().GetString("target-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	results, err := app.RunDedup(afero.NewOsFs(), &app.DedupOptions{
		SourceDirs: args,
		Mode:       mode,
		TargetDir:  targetDir,
		Workers:    config.Get().Performance.Workers,
		DryRun:     dryRun,
	})
	if err != nil {
		return err
	}

	printDedupStats(cmd, args, results)

	for _, res := range results {
		if err := res.Err(); err != nil {
			logger.Get().Warn().Err(err).Msg("部分文件处理失败")
		}
	}
	return nil
}

func printDedupStats(cmd *cobra.Command, dirs []string, results []*deduplicator.Result) {
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		st := res.Stats
		rows = append(rows, []string{
			dirs[i],
			strconv.Itoa(st.TotalProcessed),
			strconv.Itoa(st.Kept),
			strconv.Itoa(st.Deleted),
			strconv.Itoa(st.Moved),
			strconv.Itoa(st.Failed),
			humanize.Bytes(uint64(st.FreedSpace)),
			st.EndTime.Sub(st.StartTime).Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"目录", "文件", "保留", "删除", "移动", "失败", "释放空间", "耗时"},
		rows, 1, 2, 3, 4, 5, 6,
	))
}

func init() {
	dedupCmd.Flags().StringP("mode", "m", "delete", "操作模式: delete 或 move")
	dedupCmd.Flags().StringP("target-dir", "t", "", "移动模式的目标目录")
	dedupCmd.Flags().Bool("dry-run", false, "预览模式，不实际修改文件")

	rootCmd.AddCommand(dedupCmd)
}
