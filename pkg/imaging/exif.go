package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const (
	markerSOI = 0xd8
	markerSOS = 0xda
	markerEOI = 0xd9

	sourcePrefix = "source: "
	// APP1 段长度上限减去 TIFF 头和两个 IFD 的开销
	maxCommentLen = 0xffff - 2 - 128
)

var (
	ErrNoComment = errors.New("图片中没有 UserComment")
	ErrNotJPEG   = errors.New("不是 JPEG 数据")
)

// EmbedSource 在 JPEG 中写入 EXIF，Exif IFD 的 UserComment 为 "source: <url>"（ASCII 字符集）。
// 原有的 EXIF 会被整体替换。
func EmbedSource(data []byte, url string) ([]byte, error) {
	comment := sourcePrefix + url
	if len(comment) > maxCommentLen {
		return nil, fmt.Errorf("来源过长: %d 字节", len(url))
	}

	sl, err := parseJPEG(data)
	if err != nil {
		return nil, err
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	rootIb := exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, fmt.Errorf("创建 Exif IFD 失败: %w", err)
	}
	uc := exifundefined.Tag9286UserComment{
		EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
		EncodingBytes: []byte(comment),
	}
	if err := exifIb.SetStandardWithName("UserComment", uc); err != nil {
		return nil, fmt.Errorf("写入 UserComment 失败: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("写入 EXIF 失败: %w", err)
	}

	var out bytes.Buffer
	if err := sl.Write(&out); err != nil {
		return nil, fmt.Errorf("写出 JPEG 失败: %w", err)
	}
	return out.Bytes(), nil
}

// ReadUserComment 读取 JPEG 中 EXIF UserComment 的文本（不含字符集前缀）
func ReadUserComment(data []byte) (string, error) {
	sl, err := parseJPEG(data)
	if err != nil {
		return "", err
	}
	if _, _, err := sl.FindExif(); err != nil {
		return "", ErrNoComment
	}

	rootIfd, _, err := sl.Exif()
	if err != nil {
		return "", fmt.Errorf("解析 EXIF 失败: %w", err)
	}
	exifIfd, err := rootIfd.ChildWithIfdPath(exifcommon.IfdExifStandardIfdIdentity)
	if err != nil {
		return "", ErrNoComment
	}
	entries, err := exifIfd.FindTagWithName("UserComment")
	if err != nil || len(entries) == 0 {
		return "", ErrNoComment
	}

	value, err := entries[0].Value()
	if err != nil {
		return "", fmt.Errorf("读取 UserComment 失败: %w", err)
	}

	var raw []byte
	switch uc := value.(type) {
	case exifundefined.Tag9286UserComment:
		raw = uc.EncodingBytes
	case *exifundefined.Tag9286UserComment:
		raw = uc.EncodingBytes
	default:
		return "", ErrNoComment
	}
	return string(bytes.TrimRight(raw, "\x00 ")), nil
}

// SourceURL 从 UserComment 中取出来源 URL
func SourceURL(data []byte) (string, error) {
	c, err := ReadUserComment(data)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(c, sourcePrefix) {
		return "", ErrNoComment
	}
	return c[len(sourcePrefix):], nil
}

func parseJPEG(data []byte) (*jis.SegmentList, error) {
	if err := checkSegments(data); err != nil {
		return nil, err
	}

	mc, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJPEG, err)
	}
	sl, ok := mc.(*jis.SegmentList)
	if !ok {
		return nil, ErrNotJPEG
	}
	return sl, nil
}

// checkSegments 检查 SOS 之前每个段的标记与长度，长度字段小于 2 或越界都视为损坏
func checkSegments(data []byte) error {
	if len(data) < 2 || data[0] != 0xff || data[1] != markerSOI {
		return ErrNotJPEG
	}

	pos := 2
	for pos < len(data) {
		if pos+2 > len(data) || data[pos] != 0xff {
			return ErrNotJPEG
		}
		marker := data[pos+1]
		if marker == markerSOS || marker == markerEOI {
			return nil
		}
		if pos+4 > len(data) {
			return ErrNotJPEG
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		if length < 2 || pos+2+length > len(data) {
			return ErrNotJPEG
		}
		pos += 2 + length
	}
	return ErrNotJPEG
}
