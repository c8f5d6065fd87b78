package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// pcmHeader is the canonical 44-byte header of a PCM WAV file.
type pcmHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// WAVInfo describes the format of a WAV payload.
type WAVInfo struct {
	AudioFormat   uint16
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	DataSize      uint32
	Duration      time.Duration
}

// EncodePCM16 wraps raw little-endian 16-bit PCM into a WAV container.
func EncodePCM16(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of %d-channel frames", len(pcm), channels)
	}

	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(pcm))

	header := pcmHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// IsWAV reports whether data carries a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// ParseWAV walks the RIFF chunks and returns the format of the first data chunk.
// Streamed WAV output (ffmpeg to a pipe) leaves size fields unset, so a data
// chunk larger than the payload is clamped to what is present.
func ParseWAV(data []byte) (*WAVInfo, error) {
	if !IsWAV(data) {
		return nil, ErrNotWAV
	}

	var info WAVInfo
	haveFmt := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, fmt.Errorf("invalid WAV file: short fmt chunk")
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body:])
			info.Channels = binary.LittleEndian.Uint16(data[body+2:])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4:])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			remaining := uint32(len(data) - body)
			if size > remaining {
				size = remaining
			}
			info.DataSize = size
			info.Duration = duration(info, size)
			return &info, nil
		}

		next := uint64(body) + uint64(size) + uint64(size&1)
		if next > uint64(len(data)) {
			break
		}
		offset = int(next)
	}

	if !haveFmt {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	return nil, fmt.Errorf("invalid WAV file: missing data chunk")
}

func duration(info WAVInfo, dataSize uint32) time.Duration {
	bytesPerSecond := uint64(info.SampleRate) * uint64(info.Channels) * uint64(info.BitsPerSample) / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(uint64(dataSize) * uint64(time.Second) / bytesPerSecond)
}
