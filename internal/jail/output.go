package jail

import (
	"bytes"
	"fmt"
	"strings"
)

// DefaultMaxOutput caps the bytes kept from each of a command's stdout and
// stderr.
const DefaultMaxOutput = 1 << 20

// cappedBuffer keeps the first max bytes written and counts the rest.
// Writes never fail, so a chatty command is not killed by a broken pipe.
type cappedBuffer struct {
	buf     bytes.Buffer
	max     int
	dropped int64
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) <= room {
			c.buf.Write(p)
			return len(p), nil
		}
		c.buf.Write(p[:room])
		c.dropped += int64(len(p) - room)
		return len(p), nil
	}
	c.dropped += int64(len(p))
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	s := strings.ToValidUTF8(c.buf.String(), "�")
	if c.dropped > 0 {
		s += fmt.Sprintf("\n...[truncated %d bytes]", c.dropped)
	}
	return s
}
