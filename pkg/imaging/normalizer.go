package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/h2non/filetype"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/logger"
)

// DefaultBackground 是透明白色，转换为 RGB 后留白处为白色
var DefaultBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 0}

// NoResize 作为 Box 时保持原尺寸
var NoResize = image.Point{}

// DecodeError 表示文件不是图片、已截断或无法解码，批处理时跳过该文件
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码图片失败 %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type Normalizer struct {
	Fs         afero.Fs
	Box        image.Point
	Quality    int
	Background color.NRGBA

	// ShowProgress 为 true 且 stderr 是终端时，ResizeAll 显示进度条
	ShowProgress bool
}

func NewNormalizer(fs afero.Fs, size int) *Normalizer {
	return &Normalizer{
		Fs:         fs,
		Box:        image.Pt(size, size),
		Quality:    internal.DefaultJPEGQuality,
		Background: DefaultBackground,
	}
}

// Normalize 读取并解码 path，按比例缩小（不放大）到 box 之内，居中贴到 box 大小的画布上，
// 去掉 alpha 通道后编码为 JPEG。box 为 (0,0) 时保持原尺寸，只做颜色转换与重新编码。
func (n *Normalizer) Normalize(path string, box image.Point) ([]byte, error) {
	src, err := n.decode(path)
	if err != nil {
		return nil, err
	}

	var canvas *image.NRGBA
	if box.X > 0 && box.Y > 0 {
		canvas = n.pad(src, box)
	} else {
		b := src.Bounds()
		canvas = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	}

	quality := n.Quality
	if quality < 1 || quality > 100 {
		quality = internal.DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(canvas), &jpeg.Options{Quality: quality}); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return buf.Bytes(), nil
}

func (n *Normalizer) decode(path string) (image.Image, error) {
	f, err := n.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	head := make([]byte, 262)
	m, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	head = head[:m]
	if !filetype.IsImage(head) {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("不是图片文件")}
	}

	img, _, err := image.Decode(io.MultiReader(bytes.NewReader(head), f))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

func (n *Normalizer) pad(src image.Image, box image.Point) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, box.X, box.Y))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: n.Background}, image.Point{}, draw.Src)

	size := Fit(src.Bounds().Size(), box)
	offset := image.Pt((box.X-size.X)/2, (box.Y-size.Y)/2)
	dst := image.Rectangle{Min: offset, Max: offset.Add(size)}

	if size == src.Bounds().Size() {
		draw.Draw(canvas, dst, src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(canvas, dst, src, src.Bounds(), draw.Src, nil)
	}
	return canvas
}

// Fit 返回保持宽高比、不超过 box 的缩略尺寸。只缩小不放大，四舍五入，每边至少 1 像素。
func Fit(size, box image.Point) image.Point {
	if size.X <= box.X && size.Y <= box.Y {
		return size
	}

	w, h := float64(size.X), float64(size.Y)
	scale := math.Min(float64(box.X)/w, float64(box.Y)/h)

	out := image.Pt(int(math.Round(w*scale)), int(math.Round(h*scale)))
	out.X = clamp(out.X, 1, box.X)
	out.Y = clamp(out.Y, 1, box.Y)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// flatten 直接丢弃 alpha 通道，不与背景混合
func flatten(src *image.NRGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		dst.Pix[i] = src.Pix[i]
		dst.Pix[i+1] = src.Pix[i+1]
		dst.Pix[i+2] = src.Pix[i+2]
		dst.Pix[i+3] = 0xff
	}
	return dst
}

// BatchResult 汇总一次批量缩放
type BatchResult struct {
	Written int
	Skipped int
	Failed  int

	// Sources 为输出文件名到来源 URL 的映射，只包含有来源的文件
	Sources map[string]string
}

// ResizeAll 把 files 逐个规范化后写入 outDir，文件名为原文件名去掉扩展名再加 .jpg。
// urls 以输入文件名（不含目录）为键；有来源的输出会在 EXIF UserComment 中写入来源。
// 不同扩展名的同名文件会互相覆盖。
func (n *Normalizer) ResizeAll(files []string, outDir string, urls map[string]string) (*BatchResult, error) {
	if err := n.Fs.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	if n.Box.X > 0 && n.Box.Y > 0 {
		logger.Get().Info().Msgf("缩放图片到 %dx%d，共 %d 个文件", n.Box.X, n.Box.Y, len(files))
	} else {
		logger.Get().Info().Msgf("保持原尺寸，共 %d 个文件", len(files))
	}

	res := &BatchResult{Sources: make(map[string]string)}

	var bar *pb.ProgressBar
	if n.ShowProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = pb.New(len(files)).SetWriter(os.Stderr).Start()
		defer bar.Finish()
	}

	for _, f := range files {
		n.resizeOne(f, outDir, urls, res)
		if bar != nil {
			bar.Increment()
		}
	}

	logger.Get().Info().Msgf("缩放完成: 写入 %d，跳过 %d，失败 %d", res.Written, res.Skipped, res.Failed)
	return res, nil
}

func (n *Normalizer) resizeOne(f, outDir string, urls map[string]string, res *BatchResult) {
	data, err := n.Normalize(f, n.Box)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			logger.Get().Warn().Err(err).Msgf("跳过无法解码的文件: %s", f)
			res.Skipped++
			return
		}
		logger.Get().Error().Err(err).Msgf("处理文件失败: %s", f)
		res.Failed++
		return
	}

	base := filepath.Base(f)
	outName := strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"

	url, ok := urls[base]
	if ok {
		data, err = EmbedSource(data, url)
		if err != nil {
			logger.Get().Error().Err(err).Msgf("写入来源失败: %s", f)
			res.Failed++
			return
		}
	}

	if err := afero.WriteFile(n.Fs, filepath.Join(outDir, outName), data, 0644); err != nil {
		logger.Get().Error().Err(err).Msgf("写入文件失败: %s", outName)
		res.Failed++
		return
	}

	if ok {
		res.Sources[outName] = url
	}
	res.Written++
}
