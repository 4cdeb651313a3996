package transcode

import "fmt"

// sampleClock stamps frames handed to the encoder. It starts at zero for
// every job and advances by exactly the samples of each stamped frame.
type sampleClock struct {
	next int64
}

func (c *sampleClock) stamp(n int) int64 {
	pts := c.next
	c.next += int64(n)
	return pts
}

func (c *sampleClock) now() int64 { return c.next }

type queue interface {
	Size() int
}

// chunkSink must take exactly n samples off the queue.
type chunkSink func(n int, pts int64) error

// emitChunks hands frameSize-sample chunks to sink while enough samples are
// queued. With final set, whatever remains afterwards goes out as one short
// chunk; an empty queue emits nothing more.
func emitChunks(q queue, frameSize int, clock *sampleClock, final bool, sink chunkSink) (int, error) {
	if frameSize <= 0 {
		return 0, fmt.Errorf("invalid frame size %d", frameSize)
	}
	chunks := 0
	for q.Size() >= frameSize {
		if err := emitOne(q, frameSize, clock, sink); err != nil {
			return chunks, err
		}
		chunks++
	}
	if final && q.Size() > 0 {
		if err := emitOne(q, q.Size(), clock, sink); err != nil {
			return chunks, err
		}
		chunks++
	}
	return chunks, nil
}

func emitOne(q queue, n int, clock *sampleClock, sink chunkSink) error {
	before := q.Size()
	if err := sink(n, clock.stamp(n)); err != nil {
		return err
	}
	if taken := before - q.Size(); taken != n {
		return fmt.Errorf("chunk of %d samples consumed %d", n, taken)
	}
	return nil
}
