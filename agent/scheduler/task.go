package scheduler

import (
	"context"
	"time"

	"github.com/BaSui01/liminal/llm"
)

// outcome 是一次发言的一次性完成通知
type outcome struct {
	result *llm.Result
	err    error
}

// turnTask 是一轮中一个参与者的发言。chunks 为无缓冲的多次分片通知，
// done 为容量 1 的一次性完成通知；工作协程发完全部分片后才发送 done。
type turnTask struct {
	index       int
	participant llm.Participant
	chunks      chan string
	done        chan outcome
	started     time.Time
	streamed    bool
}

func newTurnTask(index int, p llm.Participant) *turnTask {
	return &turnTask{
		index:       index,
		participant: p,
		chunks:      make(chan string),
		done:        make(chan outcome, 1),
		started:     time.Now(),
	}
}

// emit 返回交给 Provider 的分片回调。循环退出后回调立即返回。
func (t *turnTask) emit(ctx context.Context) func(string) {
	return func(chunk string) {
		select {
		case t.chunks <- chunk:
		case <-ctx.Done():
		}
	}
}

func (t *turnTask) finish(o outcome) {
	select {
	case t.done <- o:
	default:
	}
}
