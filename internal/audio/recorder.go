package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	pcmChannels = 1
	pcmBitDepth = 16
)

// Recorder captures the raw PCM of an interview to disk and encodes it to
// MP3 when the session ends. WritePCM is safe to call from the audio
// goroutines; frames arriving outside a session are dropped.
type Recorder struct {
	audioDir string

	mu        sync.Mutex
	sessionID string
	rawPath   string
	rawFile   *os.File

	encode func(rawPath, sessionID string) (string, error)
}

func NewRecorder(audioDir string) *Recorder {
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}

	r := &Recorder{audioDir: audioDir}
	r.encode = r.defaultEncode
	return r
}

func (r *Recorder) StartSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := filepath.Join(r.audioDir, sessionID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.sessionID = sessionID
	r.rawPath = rawPath
	r.rawFile = rawFile

	return nil
}

// EndSession closes the raw capture and returns the path of the encoded
// recording. Without an active session it returns an empty path.
func (r *Recorder) EndSession() (string, error) {
	r.mu.Lock()
	if r.sessionID == "" || r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}

	sessionID := r.sessionID
	rawPath := r.rawPath
	rawFile := r.rawFile

	r.sessionID = ""
	r.rawPath = ""
	r.rawFile = nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	audioPath, err := r.encode(rawPath, sessionID)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return audioPath, nil
}

// WritePCM appends little-endian PCM16 bytes to the active session capture.
func (r *Recorder) WritePCM(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return
	}

	if _, err := r.rawFile.Write(data); err != nil {
		// Recording is best effort; the interview itself must not fail
		// on a full disk.
		_ = r.rawFile.Close()
		r.rawFile = nil
	}
}

func (r *Recorder) defaultEncode(rawPath, sessionID string) (string, error) {
	mp3Path := filepath.Join(r.audioDir, sessionID+".mp3")

	if err := encodeWithFFmpeg(rawPath, mp3Path); err == nil {
		return mp3Path, nil
	}

	if err := encodeWithLame(rawPath, mp3Path); err == nil {
		return mp3Path, nil
	}

	wavPath := filepath.Join(r.audioDir, sessionID+".wav")
	if err := pcmToWav(rawPath, wavPath); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}

	return wavPath, nil
}

func encodeWithFFmpeg(rawPath, outputPath string) error {
	cmd := exec.Command(
		"ffmpeg",
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(CaptureSampleRate),
		"-ac", "1",
		"-i", rawPath,
		outputPath,
	)
	return cmd.Run()
}

func encodeWithLame(rawPath, outputPath string) error {
	khz := float64(CaptureSampleRate) / 1000.0
	cmd := exec.Command(
		"lame",
		"-r",
		"-s", strconv.FormatFloat(khz, 'f', -1, 64),
		"--bitwidth", "16",
		"-m", "m",
		rawPath,
		outputPath,
	)
	return cmd.Run()
}

func pcmToWav(rawPath, wavPath string) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	header, err := wavHeader(len(pcmData), CaptureSampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}

	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	for _, v := range []any{uint32(chunkSize)} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	for _, v := range []any{
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
	} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
