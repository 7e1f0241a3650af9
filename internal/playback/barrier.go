package playback

// joinBarrier tracks readiness of the per-track pipelines. It fires exactly
// once, on the report that completes the set, whatever the arrival order.
type joinBarrier struct {
	ready map[TrackKind]bool
	fired bool
}

func newJoinBarrier(kinds ...TrackKind) *joinBarrier {
	b := &joinBarrier{ready: make(map[TrackKind]bool, len(kinds))}
	for _, k := range kinds {
		b.ready[k] = false
	}
	return b
}

// report marks kind ready and returns true if this report completed the
// barrier. Unknown kinds and repeat reports never fire it.
func (b *joinBarrier) report(kind TrackKind) bool {
	if _, ok := b.ready[kind]; !ok || b.fired {
		return false
	}
	b.ready[kind] = true
	for _, r := range b.ready {
		if !r {
			return false
		}
	}
	b.fired = true
	return true
}

func (b *joinBarrier) pending() int {
	n := 0
	for _, r := range b.ready {
		if !r {
			n++
		}
	}
	return n
}
