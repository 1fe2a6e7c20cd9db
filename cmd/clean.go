package cmd

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moyu-x/fastclass/config"
	"github.com/moyu-x/fastclass/internal/app"
	"github.com/moyu-x/fastclass/pkg/database"
	"github.com/moyu-x/fastclass/pkg/report"
)

var cleanCmd = &cobra.Command{
	Use:   "clean <infolder> [outfolder]",
	Short: "逐张浏览图片，打分或标记删除",
	Long: `在终端中逐张浏览输入目录（不递归）中的图片:
  1-9  标注类别或评分（空格 = 1）
  d    标记删除
  ←/→  浏览，不改变标注
  x    生成报告并退出

报告写在输入目录旁: <infolder>_report_all.csv 与 <infolder>_report_clean.csv。
未标记删除的图片默认复制到 outfolder（默认 <infolder>.clean）。
标注会实时保存，中途退出后可用 --resume 继续。`,
	Args:        cobra.RangeArgs(1, 2),
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("clean 需要在交互式终端中运行")
	}

	noCopy, _ := cmd.Flags().GetBool("nocopy")
	resume, _ := cmd.Flags().GetBool("resume")

	cc := app.CleanConfig{
		InFolder: args[0],
		Copy:     !noCopy,
		Box:      image.Pt(cfg.Image.Size, cfg.Image.Size),
	}
	if len(args) > 1 {
		cc.OutFolder = args[1]
	}

	dbPath, err := database.ExpandPath(cfg.Database.Path)
	if err != nil {
		return err
	}

	res, err := app.RunClean(afero.NewOsFs(), &app.CleanOptions{
		Config: cc,
		Resume: resume,
		DBPath: dbPath,
	})

	var cerr *report.CopyError
	if err != nil && !errors.As(err, &cerr) {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Finished {
		fmt.Fprintf(out, "已标注 %d/%d，使用 --resume 继续\n", res.Classified, res.Total)
		return nil
	}

	rows := [][]string{
		{"已标注", fmt.Sprintf("%d/%d", res.Classified, res.Total)},
		{"全部报告", res.Report.AllPath},
		{"清理报告", res.Report.CleanPath},
	}
	if cc.Copy {
		rows = append(rows, []string{"已复制", strconv.Itoa(res.Report.Copied)})
	}
	fmt.Fprintln(out, renderTable([]string{"项目", "结果"}, rows))

	if cerr != nil {
		return fmt.Errorf("%d 个文件复制失败: %w", len(cerr.Failed), cerr)
	}
	return nil
}

func init() {
	cleanCmd.Flags().Bool("nocopy", false, "不复制文件，只生成报告")
	cleanCmd.Flags().BoolP("resume", "r", false, "恢复上次未完成的标注")

	rootCmd.AddCommand(cleanCmd)
}
