package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	// CaptureSampleRate matches the PCMU leg of the voice session.
	CaptureSampleRate = 8000
	// FrameSamples is one 20ms frame at 8kHz mono.
	FrameSamples = 160
)

var paOnce sync.Once

func initPortAudio() error {
	var err error
	paOnce.Do(func() {
		err = portaudio.Initialize()
	})
	return err
}

// Microphone captures mono PCM16 frames from the default input device.
type Microphone struct {
	stream *portaudio.Stream
	buf    []int16
	frame  []byte
}

// NewMicrophone opens the default capture device at the session sample rate.
func NewMicrophone() (*Microphone, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]int16, FrameSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(CaptureSampleRate), FrameSamples, buf)
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w", err)
	}

	return &Microphone{
		stream: stream,
		buf:    buf,
		frame:  make([]byte, FrameSamples*2),
	}, nil
}

func (m *Microphone) Start() error {
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("start capture stream: %w", err)
	}
	return nil
}

// ReadFrame blocks for one frame and returns it as little-endian PCM16 bytes.
// The returned slice is reused on the next call.
func (m *Microphone) ReadFrame() ([]byte, error) {
	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("read capture frame: %w", err)
	}
	for i, sample := range m.buf {
		binary.LittleEndian.PutUint16(m.frame[i*2:], uint16(sample))
	}
	return m.frame, nil
}

func (m *Microphone) Close() error {
	if err := m.stream.Stop(); err != nil {
		_ = m.stream.Close()
		return fmt.Errorf("stop capture stream: %w", err)
	}
	if err := m.stream.Close(); err != nil {
		return fmt.Errorf("close capture stream: %w", err)
	}
	return nil
}
