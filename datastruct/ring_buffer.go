package datastruct

import "sync"

// RingBuffer is a fixed-capacity circular buffer of strings. Once the
// buffer is full, each new element overwrites the oldest one.
type RingBuffer struct {
	mutex   sync.RWMutex
	size    int64
	counter int64
	buf     []string
}

// NewRingBuffer returns an initialised ring buffer.
func NewRingBuffer(size int64) *RingBuffer {
	if size < 1 {
		panic("NewRingBuffer: size must be greater than 0")
	}
	return &RingBuffer{size: size, buf: make([]string, size)}
}

// Push places a new element into the ring buffer.
func (r *RingBuffer) Push(elem string) {
	r.mutex.Lock()
	r.counter++
	r.buf[r.counter%r.size] = elem
	r.mutex.Unlock()
}

// Clear discards all buffered elements, consequently GetAll returns an
// empty array until the next Push.
func (r *RingBuffer) Clear() {
	r.mutex.Lock()
	r.buf = make([]string, r.size)
	r.mutex.Unlock()
}

// snapshotReverse copies the non-empty elements ordered latest first,
// under the read lock.
func (r *RingBuffer) snapshotReverse() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]string, 0, r.size)
	newest := r.counter % r.size
	for i := newest; i >= 0; i-- {
		if r.buf[i] != "" {
			out = append(out, r.buf[i])
		}
	}
	for i := r.size - 1; i > newest; i-- {
		if r.buf[i] != "" {
			out = append(out, r.buf[i])
		}
	}
	return out
}

// IterateReverse traverses the buffered elements from the latest to the
// oldest, skipping empty elements. The traversal stops as soon as fun
// returns false.
func (r *RingBuffer) IterateReverse(fun func(string) bool) {
	for _, elem := range r.snapshotReverse() {
		if !fun(elem) {
			return
		}
	}
}

// GetAll returns all buffered elements, oldest to latest.
func (r *RingBuffer) GetAll() []string {
	reversed := r.snapshotReverse()
	ret := make([]string, len(reversed))
	for i, s := range reversed {
		ret[len(ret)-1-i] = s
	}
	return ret
}
