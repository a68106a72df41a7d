package granite

import (
	"runtime"
	"sync/atomic"
)

const defaultWorkers = 1

// Task is one unit of solver work.
type Task interface {
	Run(workerIndex int)
}

// ThreadPool executes tasks pushed to it. The pool only guarantees
// eventual execution; completion is signalled through the latch owned
// by the caller. Simulate accepts any implementation, or nil to run
// every task inline.
type ThreadPool interface {
	Push(Task)
}

// countdownLatch gates the driver between color groups: each chunk
// task counts down once, the driver spins until zero.
type countdownLatch struct {
	remaining atomic.Int64
}

func (l *countdownLatch) reset(n int) {
	l.remaining.Store(int64(n))
}

func (l *countdownLatch) countDown() {
	l.remaining.Add(-1)
}

func (l *countdownLatch) tryWait() bool {
	return l.remaining.Load() <= 0
}

func (l *countdownLatch) wait() {
	for !l.tryWait() {
		runtime.Gosched()
	}
}

// WorkerPool is a goroutine-backed ThreadPool.
type WorkerPool struct {
	tasks chan Task
}

// NewWorkerPool starts workersCount goroutines draining the task
// queue. Close releases them.
func NewWorkerPool(workersCount int) *WorkerPool {
	workersCount = max(defaultWorkers, workersCount)
	p := &WorkerPool{tasks: make(chan Task, workersCount*2)}
	for workerIndex := 0; workerIndex < workersCount; workerIndex++ {
		go func(workerIndex int) {
			for task := range p.tasks {
				task.Run(workerIndex)
			}
		}(workerIndex)
	}
	return p
}

func (p *WorkerPool) Push(task Task) {
	p.tasks <- task
}

// Close stops the workers once queued tasks drain.
func (p *WorkerPool) Close() {
	close(p.tasks)
}
