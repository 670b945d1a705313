//go:build !tinygo

package protocol

import "sync"

// critical guards a Pipe when producer and consumer are goroutines
type critical struct {
	mu sync.Mutex
}

func (c *critical) enter() {
	c.mu.Lock()
}

func (c *critical) exit() {
	c.mu.Unlock()
}
