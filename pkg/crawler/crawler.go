package crawler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moyu-x/fastclass/internal"
)

// All 代表所有已注册的抓取器
const All = "ALL"

// Sources 是下载文件名到来源 URL 的映射
type Sources map[string]string

// Merge 把 other 合并进 s，同名时以 other 为准
func (s Sources) Merge(other Sources) {
	for k, v := range other {
		s[k] = v
	}
}

type Request struct {
	// Folder 是下载目标目录
	Folder string
	Term   string
	// MaxNum 为单个抓取器最多下载的数量，不超过 1000
	MaxNum int
}

// Crawler 把一个搜索词的图片下载到 Request.Folder，并返回文件名到来源的映射
type Crawler interface {
	Name() string
	Crawl(ctx context.Context, req Request) (Sources, error)
}

// ClampMaxNum 把 n 限制在 1..1000，n <= 0 时取上限
func ClampMaxNum(n int) int {
	if n <= 0 || n > internal.MaxCrawlNum {
		return internal.MaxCrawlNum
	}
	return n
}

type Registry struct {
	mu       sync.RWMutex
	crawlers map[string]Crawler
}

func NewRegistry(crawlers ...Crawler) *Registry {
	r := &Registry{crawlers: make(map[string]Crawler)}
	for _, c := range crawlers {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Crawler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crawlers[strings.ToUpper(c.Name())] = c
}

// Names 返回已注册的抓取器名称，按字母排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.crawlers))
	for n := range r.crawlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve 把名称列表解析为抓取器，大小写不敏感，ALL 展开为全部，重复的名称只保留一次
func (r *Registry) Resolve(names []string) ([]Crawler, error) {
	if len(names) == 0 {
		names = []string{All}
	}

	var expanded []string
	for _, n := range names {
		if strings.EqualFold(n, All) {
			expanded = append(expanded, r.Names()...)
			continue
		}
		expanded = append(expanded, strings.ToUpper(n))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(expanded))
	out := make([]Crawler, 0, len(expanded))
	for _, n := range expanded {
		if seen[n] {
			continue
		}
		seen[n] = true
		c, ok := r.crawlers[n]
		if !ok {
			return nil, fmt.Errorf("未知的抓取器: %s", n)
		}
		out = append(out, c)
	}
	return out, nil
}

// Run 依次调用每个抓取器，合并来源映射。单个抓取器失败时返回已得到的结果和错误。
func Run(ctx context.Context, crawlers []Crawler, req Request) (Sources, error) {
	req.MaxNum = ClampMaxNum(req.MaxNum)

	all := make(Sources)
	for _, c := range crawlers {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		src, err := c.Crawl(ctx, req)
		all.Merge(src)
		if err != nil {
			return all, fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return all, nil
}
