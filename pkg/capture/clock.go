package capture

import "time"

// DefaultSegmentDuration is the length of one independently decodable segment.
const DefaultSegmentDuration = 3 * time.Second

// Format describes the raw PCM layout a Source delivers.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is 16 kHz mono signed 16-bit, what the transcription endpoint expects.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
}

// FrameSize is the number of bytes holding one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// SegmentClock places segment boundaries on the capture timeline. Boundaries are
// measured in captured bytes rather than wall time so consecutive segments
// neither overlap nor leave a gap, whatever the scheduling jitter of the reader.
type SegmentClock struct {
	Duration time.Duration
	Format   Format
}

func NewSegmentClock(d time.Duration, format Format) SegmentClock {
	if d <= 0 {
		d = DefaultSegmentDuration
	}
	return SegmentClock{Duration: d, Format: format}
}

// SegmentBytes is the frame-aligned byte budget of one full segment.
func (c SegmentClock) SegmentBytes() int {
	frame := c.Format.FrameSize()
	n := int(int64(c.Format.BytesPerSecond()) * int64(c.Duration) / int64(time.Second))
	n -= n % frame
	if n < frame {
		n = frame
	}
	return n
}

// Elapsed converts a byte position on the capture timeline into time.
func (c SegmentClock) Elapsed(bytes int64) time.Duration {
	bps := int64(c.Format.BytesPerSecond())
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes * int64(time.Second) / bps)
}
