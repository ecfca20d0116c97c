package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/heap/alloc"
	"github.com/sixstars/starctf2022/heap/dirty"
	"github.com/sixstars/starctf2022/heap/verify"
	"github.com/sixstars/starctf2022/internal/mmfile"
)

// session is an image opened read-write with an allocator attached.
type session struct {
	path string
	a    *heap.Arena
	dt   *dirty.Tracker
	h    *alloc.Heap
}

// openSession maps the image and attaches the allocator to it.
func openSession(path string) (*session, error) {
	cfg, err := heapConfig()
	if err != nil {
		return nil, err
	}
	base, err := heapBase()
	if err != nil {
		return nil, err
	}

	printVerbose("Opening image: %s\n", path)
	a, err := heap.Open(path, base)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	dt := dirty.NewTracker(a)
	h, err := alloc.Attach(a, dt, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to attach heap: %w", err)
	}
	printVerbose("Attached %s heap, %d-byte words, first chunk 0x%x\n",
		h.Config().Name, h.Config().WordSize, h.First())
	return &session{path: path, a: a, dt: dt, h: h}, nil
}

// close flushes dirty pages and unmaps the image.
func (s *session) close() error {
	ranges := len(s.dt.DebugCoalescedRanges())
	err := s.dt.Flush(context.Background(), dirty.FlushAuto)
	if err == nil {
		printVerbose("Flushed %d dirty range(s)\n", ranges)
	}
	if cerr := s.a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// guard runs fn and turns an allocator corruption panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok || !errors.Is(perr, alloc.ErrCorrupt) {
				panic(r)
			}
			err = perr
		}
	}()
	return fn()
}

// imageView maps the image read-only and describes its heap.
func imageView(path string) (verify.View, func() error, error) {
	cfg, err := heapConfig()
	if err != nil {
		return verify.View{}, nil, err
	}
	base, err := heapBase()
	if err != nil {
		return verify.View{}, nil, err
	}

	printVerbose("Mapping image: %s\n", path)
	data, cleanup, err := mmfile.Map(path)
	if err != nil {
		return verify.View{}, nil, fmt.Errorf("failed to map image: %w", err)
	}
	a, err := heap.Wrap(base, data)
	if err != nil {
		cleanup()
		return verify.View{}, nil, err
	}
	v, err := alloc.ViewOf(a, cfg)
	if err != nil {
		cleanup()
		return verify.View{}, nil, err
	}
	return v, cleanup, nil
}
