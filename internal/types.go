package internal

import "time"

// 操作模式
type OperationMode string

const (
	ModeDelete OperationMode = "delete"
	ModeMove   OperationMode = "move"
)

// ParseOperationMode 校验操作模式
func ParseOperationMode(s string) (OperationMode, bool) {
	switch OperationMode(s) {
	case ModeDelete, ModeMove:
		return OperationMode(s), true
	default:
		return "", false
	}
}

// 处理统计
type ProcessStats struct {
	TotalProcessed int
	Kept           int
	Deleted        int
	Moved          int
	Failed         int
	FreedSpace     int64
	StartTime      time.Time
	EndTime        time.Time
}

// 下载流程中单个类别的统计
type ClassStats struct {
	Term       string
	Folder     string
	Crawled    int
	Duplicates int
	Resized    int
	Skipped    int
}
