package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moyu-x/fastclass/config"
	"github.com/moyu-x/fastclass/internal/app"
)

var resizeCmd = &cobra.Command{
	Use:   "resize <input> <output>",
	Short: "把目录中的图片缩放为固定大小的 JPEG",
	Long: `读取输入目录（不递归）中的图片，等比缩小到 size x size 以内，
居中放到白色画布上并保存为 JPEG。不会放大图片；size 为 0 时保持原尺寸。
无法解码的文件会被跳过。`,
	Args: cobra.ExactArgs(2),
	RunE: runResize,
}

func runResize(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	size := cfg.Image.Size
	if cmd.Flags().Changed("size") {
		size, _ = cmd.Flags().GetInt("size")
	}

	res, err := app.RunResize(afero.NewOsFs(), &app.ResizeOptions{
		InDir:        args[0],
		OutDir:       args[1],
		Size:         size,
		Quality:      cfg.Image.Quality,
		ShowProgress: isatty.IsTerminal(os.Stderr.Fd()),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"输出目录", "写入", "跳过", "失败"},
		[][]string{{args[1], strconv.Itoa(res.Written), strconv.Itoa(res.Skipped), strconv.Itoa(res.Failed)}},
		1, 2, 3,
	))
	return nil
}

func init() {
	resizeCmd.Flags().IntP("size", "s", 299, "画布边长，0 表示保持原尺寸")

	rootCmd.AddCommand(resizeCmd)
}
