package throttle

import "sync"

type BucketGroup[K comparable] struct {
	conf    *BucketConf
	buckets *sync.Map // K -> *Bucket[K]
}

func (g *BucketGroup[K]) GetBucket(id K) (*Bucket[K], bool) {
	bAny, ok := g.buckets.Load(id)
	if !ok {
		return nil, false
	}
	return bAny.(*Bucket[K]), true
}

// Len counts the live buckets.
func (g *BucketGroup[K]) Len() int {
	n := 0
	g.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
