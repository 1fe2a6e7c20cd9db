package hasher

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/logger"
)

// Hasher 按固定块大小流式计算文件内容摘要
type Hasher struct {
	Fs        afero.Fs
	BlockSize int
}

func New(fs afero.Fs) *Hasher {
	return &Hasher{
		Fs:        fs,
		BlockSize: internal.DefaultBlockSize,
	}
}

// Digest 返回文件内容的 16 位十六进制 xxHash64 摘要。
// 打开或读取失败时整个摘要作废并返回错误。
func (h *Hasher) Digest(filePath string) (string, error) {
	sum, err := h.sum(filePath)
	if err != nil {
		return "", err
	}
	return FormatDigest(sum), nil
}

func (h *Hasher) sum(filePath string) (uint64, error) {
	logger.Get().Debug().Msgf("计算文件哈希: %s", filePath)

	file, err := h.Fs.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	size := h.BlockSize
	if size <= 0 {
		size = internal.DefaultBlockSize
	}

	d := xxhash.New()
	if _, err := io.CopyBuffer(onlyWriter{d}, onlyReader{file}, make([]byte, size)); err != nil {
		return 0, fmt.Errorf("计算哈希失败: %w", err)
	}

	result := d.Sum64()
	logger.Get().Trace().Msgf("文件哈希计算完成: %s -> %016x", filePath, result)
	return result, nil
}

func FormatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// io.CopyBuffer 会优先使用 WriterTo/ReaderFrom，包一层保证按块读取
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }
