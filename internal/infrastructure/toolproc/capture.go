package toolproc

import (
	"bytes"
	"sync"
)

const truncationMarker = "\n... (output truncated)"

// capture is a byte-bounded sink for one subprocess stream.
//
// A misbehaving tool can write unbounded output; writes past the cap are
// dropped (not buffered) and the final string carries a truncation marker.
// Write never reports an error so the wrapped exec.Cmd copier keeps draining
// the pipe until the process exits.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCapture(max int) *capture {
	return &capture{max: max}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) <= room {
			c.buf.Write(p)
			return len(p), nil
		}
		c.buf.Write(p[:room])
	}
	c.truncated = true
	return len(p), nil
}

// String returns the captured bytes, with the truncation marker appended if
// any writes were dropped.
func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.truncated {
		return c.buf.String() + truncationMarker
	}
	return c.buf.String()
}
