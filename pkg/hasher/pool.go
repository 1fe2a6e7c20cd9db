package hasher

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/moyu-x/fastclass/internal"
	"github.com/moyu-x/fastclass/pkg/logger"
)

// HashTask 是一个待计算的文件，Index 为其在遍历中的序号
type HashTask struct {
	Index int
	Path  string
	Size  int64
}

type HashResult struct {
	Index  int
	Path   string
	Digest string
	Size   int64
	Error  error
}

// HashPool 使用 ants 协程池并发计算哈希。
// 结果顺序不保证，调用方按 Index 还原遍历顺序。
type HashPool struct {
	hasher  *Hasher
	workers int
	tasks   chan HashTask
	results chan HashResult
	wg      sync.WaitGroup
	pool    *ants.Pool
}

func NewHashPool(h *Hasher, workers int) *HashPool {
	if workers < 1 {
		workers = 1
	}
	logger.Get().Debug().Msgf("创建哈希计算池，工作协程数: %d", workers)
	return &HashPool{
		hasher:  h,
		workers: workers,
		tasks:   make(chan HashTask, internal.DefaultBufferSize),
		results: make(chan HashResult, internal.DefaultBufferSize),
	}
}

func (p *HashPool) Start() error {
	pool, err := ants.NewPool(p.workers)
	if err != nil {
		logger.Get().Error().Err(err).Msg("创建 goroutine 池失败")
		return err
	}
	return p.start(pool)
}

func (p *HashPool) start(pool *ants.Pool) error {
	p.pool = pool

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		if err := p.pool.Submit(p.worker); err != nil {
			p.wg.Done()
			logger.Get().Error().Err(err).Msg("提交工作协程失败")
			// 已启动的 worker 随 tasks 关闭退出
			close(p.tasks)
			p.pool.Release()
			return err
		}
	}

	go func() {
		p.wg.Wait()
		close(p.results)
	}()
	return nil
}

func (p *HashPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		digest, err := p.hasher.Digest(task.Path)
		p.results <- HashResult{
			Index:  task.Index,
			Path:   task.Path,
			Digest: digest,
			Size:   task.Size,
			Error:  err,
		}
	}
}

func (p *HashPool) AddTask(task HashTask) {
	p.tasks <- task
}

// Results 在所有任务完成且 Close 之后关闭
func (p *HashPool) Results() <-chan HashResult {
	return p.results
}

// Close 表示不再提交任务，结果通道在剩余任务完成后关闭
func (p *HashPool) Close() {
	close(p.tasks)
}

// Release 释放协程池，需在结果全部读取后调用
func (p *HashPool) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// HashAll 计算所有任务并按提交顺序返回结果，任务的 Index 会被改写为其下标
func HashAll(h *Hasher, workers int, tasks []HashTask) ([]HashResult, error) {
	p := NewHashPool(h, workers)
	if err := p.Start(); err != nil {
		return nil, err
	}
	defer p.Release()

	go func() {
		for i, t := range tasks {
			t.Index = i
			p.AddTask(t)
		}
		p.Close()
	}()

	ordered := make([]HashResult, len(tasks))
	for r := range p.Results() {
		ordered[r.Index] = r
	}
	return ordered, nil
}
