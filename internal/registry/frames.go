package registry

import (
	"context"
	"image"
	"sync"
	"time"
)

// Frame is the last frame delivered for a source.
type Frame struct {
	Image *image.RGBA
	Seq   uint64
	At    time.Time
}

// FrameCache keeps the last delivered frame per source for snapshot export
// and the frame endpoints. Frames are never mutated once stored.
type FrameCache struct {
	mu     sync.RWMutex
	frames map[string]Frame
	// notify is closed and replaced on every Put.
	notify chan struct{}
}

func NewFrameCache() *FrameCache {
	return &FrameCache{
		frames: make(map[string]Frame),
		notify: make(chan struct{}),
	}
}

func (c *FrameCache) Put(id string, img *image.RGBA, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.frames[id]
	c.frames[id] = Frame{Image: img, Seq: prev.Seq + 1, At: at}
	close(c.notify)
	c.notify = make(chan struct{})
}

// Next blocks until a frame with a sequence number above after is stored for
// id, or ctx is done. Frames stored in between are skipped.
func (c *FrameCache) Next(ctx context.Context, id string, after uint64) (Frame, error) {
	for {
		c.mu.RLock()
		f, ok := c.frames[id]
		wait := c.notify
		c.mu.RUnlock()

		if ok && f.Image != nil && f.Seq > after {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-wait:
		}
	}
}

func (c *FrameCache) Latest(id string) (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.frames[id]
	return f, ok && f.Image != nil
}

// Seq returns how many frames were stored for id, 0 if none.
func (c *FrameCache) Seq(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames[id].Seq
}

func (c *FrameCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.frames, id)
}
