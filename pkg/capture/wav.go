package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// MimeTypeWAV is the container every finalized segment is written in.
const MimeTypeWAV = "audio/wav"

// Encoder turns one segment worth of raw PCM into a self-contained audio file.
type Encoder interface {
	Encode(pcm []byte, format Format) ([]byte, error)
	MimeType() string
}

// WAVEncoder writes a RIFF/WAVE container with a complete header, so each
// segment decodes on its own.
type WAVEncoder struct{}

func (WAVEncoder) MimeType() string {
	return MimeTypeWAV
}

func (WAVEncoder) Encode(pcm []byte, format Format) ([]byte, error) {
	bf := beepFormat(format)
	if bf.Precision < 1 || bf.Precision > 3 {
		return nil, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
	}
	if len(pcm)%bf.Width() != 0 {
		return nil, errors.New("pcm is not frame aligned")
	}

	out := &memFile{buf: make([]byte, 0, len(pcm)+44)}
	if err := wav.Encode(out, &pcmStreamer{data: pcm, format: bf}, bf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.buf, nil
}

func beepFormat(f Format) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   f.BitDepth / 8,
	}
}

// pcmStreamer exposes little-endian signed PCM as a beep.Streamer.
type pcmStreamer struct {
	data   []byte
	format beep.Format
	pos    int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	width := s.format.Width()
	for n < len(samples) && s.pos+width <= len(s.data) {
		samples[n], _ = s.format.DecodeSigned(s.data[s.pos : s.pos+width])
		s.pos += width
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error {
	return nil
}

// memFile is the in-memory io.WriteSeeker wav.Encode needs to patch its header.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
