package convert

import "sync"

// Size-bucketed scratch pools for the conversion filter's intermediate
// buffers, directly adapted from the teacher's internal/queue/pool.go
// GetBuffer/PutBuffer — repurposed from per-I/O overflow buffers to
// per-filter conversion scratch, since conversion must size its
// intermediate buffer to max(in, out) on every call and that is not a
// free operation on the hot path.
const (
	bucket4k   = 4 * 1024
	bucket16k  = 16 * 1024
	bucket64k  = 64 * 1024
	bucket256k = 256 * 1024
	bucket1m   = 1024 * 1024
)

var bytePool = struct {
	p4k, p16k, p64k, p256k, p1m sync.Pool
}{
	p4k:   sync.Pool{New: func() any { b := make([]byte, bucket4k); return &b }},
	p16k:  sync.Pool{New: func() any { b := make([]byte, bucket16k); return &b }},
	p64k:  sync.Pool{New: func() any { b := make([]byte, bucket64k); return &b }},
	p256k: sync.Pool{New: func() any { b := make([]byte, bucket256k); return &b }},
	p1m:   sync.Pool{New: func() any { b := make([]byte, bucket1m); return &b }},
}

func bucketFor(size int) (int, *sync.Pool) {
	switch {
	case size <= bucket4k:
		return bucket4k, &bytePool.p4k
	case size <= bucket16k:
		return bucket16k, &bytePool.p16k
	case size <= bucket64k:
		return bucket64k, &bytePool.p64k
	case size <= bucket256k:
		return bucket256k, &bytePool.p256k
	default:
		return bucket1m, &bytePool.p1m
	}
}

// getBytes returns a pooled byte slice of at least size, falling back
// to a direct allocation for anything larger than the largest bucket.
func getBytes(size int) []byte {
	if size > bucket1m {
		return make([]byte, size)
	}
	bucketSize, pool := bucketFor(size)
	buf := (*pool.Get().(*[]byte))[:bucketSize]
	return buf[:size]
}

// putBytes returns buf to its bucket pool, if it came from one.
func putBytes(buf []byte) {
	c := cap(buf)
	var pool *sync.Pool
	switch c {
	case bucket4k:
		pool = &bytePool.p4k
	case bucket16k:
		pool = &bytePool.p16k
	case bucket64k:
		pool = &bytePool.p64k
	case bucket256k:
		pool = &bytePool.p256k
	case bucket1m:
		pool = &bytePool.p1m
	default:
		return
	}
	full := buf[:c]
	pool.Put(&full)
}
