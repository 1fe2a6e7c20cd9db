package terms

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Term 是 terms 文件中的一行：搜索词以及生成目录名时要去掉的词
type Term struct {
	Search string
	Remove string
}

// Folder 返回该搜索词对应的类别目录名
func (t Term) Folder() string {
	return Sanitize(t.Search, t.Remove)
}

var invalidChars = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)

// Parse 读取 terms 文件。第一行是表头，跳过；
// 其余每个非空行为 "搜索词[,要去掉的词]"。
func Parse(r io.Reader) ([]Term, error) {
	scanner := bufio.NewScanner(r)

	var out []Term
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		search, remove, _ := strings.Cut(text, ",")
		search = strings.TrimSpace(search)
		if search == "" {
			return nil, fmt.Errorf("第 %d 行缺少搜索词", line)
		}
		out = append(out, Term{Search: search, Remove: strings.TrimSpace(remove)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取搜索词失败: %w", err)
	}
	return out, nil
}

// Sanitize 把搜索词转换为目录名：去掉 remove 中以空格分隔的每个词，
// 空格换成下划线，& 换成 and，再删除字母、数字、-、_、. 以外的字符
func Sanitize(term, remove string) string {
	s := term
	for _, r := range strings.Fields(remove) {
		s = strings.ReplaceAll(s, r, "")
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "&", "and")
	return invalidChars.ReplaceAllString(s, "")
}
