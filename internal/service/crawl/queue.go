package crawl

import (
	"context"
	"net/url"
	"sync"

	"github.com/LouYuanbo1/storecrawler/param"
)

// queue 无界任务队列
// pending 记录已入队但尚未完成的任务,归零时队列关闭,workers 随之退出
// 已分发任务数达到 maxTasks 后停止分发,剩余任务被丢弃
type queue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      []param.CrawlTask
	seen       map[string]struct{}
	pending    int
	dispatched int
	maxTasks   int
	closed     bool
	dropped    int
}

func newQueue(ctx context.Context, maxTasks int) (*queue, func() bool) {
	q := &queue{
		seen:     make(map[string]struct{}),
		maxTasks: maxTasks,
	}
	q.cond = sync.NewCond(&q.mu)
	stop := context.AfterFunc(ctx, q.close)
	return q, stop
}

// push 入队,同一地址(忽略片段)只接受一次
func (q *queue) push(task param.CrawlTask) bool {
	if !task.IsValid() {
		return false
	}
	key := taskKey(task.TaskUrl())

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if _, ok := q.seen[key]; ok {
		return false
	}
	q.seen[key] = struct{}{}
	q.tasks = append(q.tasks, task)
	q.pending++
	q.cond.Signal()
	return true
}

// pop 阻塞直到有任务或队列关闭
func (q *queue) pop() (param.CrawlTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	if q.maxTasks > 0 && q.dispatched >= q.maxTasks {
		q.dropped += len(q.tasks)
		q.tasks = nil
		q.closeLocked()
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.dispatched++
	return task, true
}

// done 一个任务处理完成,新任务应在 done 之前 push
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending <= 0 {
		q.closeLocked()
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

func (q *queue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

func (q *queue) counts() (dispatched, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dispatched, q.dropped + len(q.tasks)
}

func taskKey(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return address
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
