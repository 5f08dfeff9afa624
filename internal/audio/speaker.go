package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Speaker plays mono PCM16 audio on the default output device with
// adjustable volume and a hard mute.
type Speaker struct {
	stream *portaudio.Stream
	buf    []int16

	mu     sync.Mutex
	volume float64
	muted  bool
}

// NewSpeaker opens the default playback device at the session sample rate.
func NewSpeaker() (*Speaker, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]int16, FrameSamples)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(CaptureSampleRate), FrameSamples, buf)
	if err != nil {
		return nil, fmt.Errorf("open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start playback stream: %w", err)
	}

	return &Speaker{stream: stream, buf: buf, volume: 1.0}, nil
}

// Play writes little-endian PCM16 bytes to the output device, scaled by
// the current volume. A short trailing chunk is zero-padded to a full frame.
func (s *Speaker) Play(pcm []byte) error {
	s.mu.Lock()
	volume := s.volume
	if s.muted {
		volume = 0
	}
	s.mu.Unlock()

	for offset := 0; offset < len(pcm); offset += FrameSamples * 2 {
		end := offset + FrameSamples*2
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]

		for i := range s.buf {
			s.buf[i] = 0
		}
		for i := 0; i*2+1 < len(chunk); i++ {
			sample := int16(binary.LittleEndian.Uint16(chunk[i*2:]))
			s.buf[i] = scaleSample(sample, volume)
		}

		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("write playback frame: %w", err)
		}
	}
	return nil
}

func (s *Speaker) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
}

func (s *Speaker) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Speaker) Close() error {
	if err := s.stream.Stop(); err != nil {
		_ = s.stream.Close()
		return fmt.Errorf("stop playback stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close playback stream: %w", err)
	}
	return nil
}

func scaleSample(sample int16, volume float64) int16 {
	if volume >= 1.0 {
		return sample
	}
	scaled := float64(sample) * volume
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}
