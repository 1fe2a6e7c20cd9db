package internal

const (
	// 标签数据库默认路径
	DefaultDatabasePath = "~/.fastclass/labels.db"

	// 缓冲区大小
	DefaultBufferSize = 1000

	// 默认工作协程数
	DefaultWorkers = 4

	// 哈希读取块大小
	DefaultBlockSize = 64 * 1024

	// 默认画布边长，0 表示保持原尺寸
	DefaultImageSize = 299

	// JPEG 输出质量
	DefaultJPEGQuality = 95

	// 每个爬虫单次最多下载数量
	MaxCrawlNum = 1000

	// 数据集默认输出目录
	DefaultOutPath = "dataset"
)
