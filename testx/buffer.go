package testx

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

// ConcurrentBuffer is a bytes.Buffer safe to share between a logger writing
// from several goroutines and a test reading it.
type ConcurrentBuffer struct {
	b *bytes.Buffer
	m sync.RWMutex
	t *testing.T
}

func NewConcurrentBuffer(t *testing.T) *ConcurrentBuffer {
	return &ConcurrentBuffer{
		b: new(bytes.Buffer),
		t: t,
	}
}

func (c *ConcurrentBuffer) Write(p []byte) (n int, err error) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.b.Write(p)
}

func (c *ConcurrentBuffer) String() string {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.b.String()
}

// Lines returns the non-empty lines written so far.
func (c *ConcurrentBuffer) Lines() []string {
	var lines []string
	for _, line := range strings.Split(c.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (c *ConcurrentBuffer) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.b.Reset()
}
