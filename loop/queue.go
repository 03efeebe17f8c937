package loop

import (
	"container/heap"
	"time"
)

// entry is a scheduled callback
type entry struct {
	id    Handle
	at    time.Time
	seq   uint64        // tie-break: FIFO for equal deadlines
	every time.Duration // >0 for repeating entries
	fn    func()
	index int // position in the heap (needed for Remove)
}

// queue implements heap.Interface, earliest deadline first
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// peek returns the earliest entry without removing it
func (q queue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *queue) remove(e *entry) {
	if e.index >= 0 {
		heap.Remove(q, e.index)
	}
}
