package dump

import "container/heap"

// jobHeap implements heap.Interface, ordering replay jobs by submission
// order (FIFO); adapted from periwiki's renderqueue.jobHeap, dropping the
// tier comparison since replay has exactly one tier.
type jobHeap []*Job

var _ heap.Interface = (*jobHeap)(nil)

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool { return h[i].SubmittedAt.Before(h[j].SubmittedAt) }

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *jobHeap) Push(x any) {
	n := len(*h)
	job := x.(*Job)
	job.heapIndex = n
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.heapIndex = -1
	*h = old[0 : n-1]
	return job
}
