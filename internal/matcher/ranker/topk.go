package ranker

import "container/heap"

// candidate is a scored record together with its corpus position, which
// breaks score ties in favour of the earlier record.
type candidate struct {
	ScoredRecord
	pos int
}

// better reports whether x ranks ahead of y.
func better(x, y candidate) bool {
	if x.Score != y.Score {
		return x.Score > y.Score
	}
	return x.pos < y.pos
}

// topK keeps the k best candidates seen so far. The root of the heap is the
// worst kept candidate.
type topK struct {
	limit int
	items candidateHeap
}

func newTopK(limit int) *topK {
	return &topK{limit: limit, items: make(candidateHeap, 0, limit)}
}

func (t *topK) offer(c candidate) {
	if t.items.Len() < t.limit {
		heap.Push(&t.items, c)
		return
	}
	if better(c, t.items[0]) {
		t.items[0] = c
		heap.Fix(&t.items, 0)
	}
}

// sorted drains the heap, best first.
func (t *topK) sorted() []ScoredRecord {
	result := make([]ScoredRecord, t.items.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.items).(candidate).ScoredRecord
	}
	return result
}

type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
