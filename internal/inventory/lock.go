package inventory

import (
	"context"
	"sort"
	"sync"
)

// LocalLocker is a per-item mutex scoped to this process. Ids are
// locked in ascending order so overlapping callers cannot deadlock.
type LocalLocker struct {
	mu    sync.Mutex
	items map[int64]*itemLock
}

type itemLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{items: make(map[int64]*itemLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, inventoryItemIDs []int64) (func(), error) {
	ids := sortedUnique(inventoryItemIDs)
	held := make([]int64, 0, len(ids))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i], true)
		}
	}

	for _, id := range ids {
		il := l.ref(id)
		select {
		case il.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.release(id, false)
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *LocalLocker) ref(id int64) *itemLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.items[id]
	if !ok {
		il = &itemLock{ch: make(chan struct{}, 1)}
		l.items[id] = il
	}
	il.refs++
	return il
}

func (l *LocalLocker) release(id int64, acquired bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	il := l.items[id]
	if acquired {
		<-il.ch
	}
	il.refs--
	if il.refs == 0 {
		delete(l.items, id)
	}
}

func sortedUnique(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
