package buffer

import (
	"sync"
)

var _ Replacer = &LruReplacer{}

// LruReplacer evicts the frame that has been unpinned for the longest time.
type LruReplacer struct {
	unpinned []int
	pinned   map[int]struct{}
	size     int
	lock     sync.Mutex
}

func (l *LruReplacer) Pin(frameId int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if idx, ok := l.findFrameId(frameId); ok {
		l.unpinned = append(l.unpinned[:idx], l.unpinned[idx+1:]...)
	}
	l.pinned[frameId] = struct{}{}
}

func (l *LruReplacer) Unpin(frameId int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.pinned[frameId]; !ok {
		panic("unpinning a frame which is not pinned")
	}

	delete(l.pinned, frameId)
	l.unpinned = append(l.unpinned, frameId)
}

func (l *LruReplacer) ChooseVictim() (frameId int, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if len(l.unpinned) == 0 {
		return 0, ErrNoVictim
	}

	victim := l.unpinned[0]
	l.unpinned = l.unpinned[1:]
	return victim, nil
}

func (l *LruReplacer) GetSize() int {
	return l.size
}

func (l *LruReplacer) NumPinnedFrames() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	return len(l.pinned)
}

func (l *LruReplacer) findFrameId(frameId int) (int, bool) {
	for idx, curr := range l.unpinned {
		if curr == frameId {
			return idx, true
		}
	}
	return 0, false
}

func NewLruReplacer(poolSize int) *LruReplacer {
	return &LruReplacer{
		unpinned: make([]int, 0),
		pinned:   make(map[int]struct{}),
		size:     poolSize,
	}
}
