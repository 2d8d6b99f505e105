package tts

import (
	"bytes"
	"encoding/binary"
	"time"
)

const (
	wavHeaderSize    = 44
	wavSampleRate    = 22050
	wavBitsPerSample = 16
	wavChannels      = 1
)

// SilentWAV returns a mono 16-bit PCM WAV file of the given length.
func SilentWAV(d time.Duration) []byte {
	samples := int(d.Seconds() * wavSampleRate)
	blockAlign := wavChannels * wavBitsPerSample / 8
	dataSize := samples * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(wavChannels))
	binary.Write(buf, binary.LittleEndian, uint32(wavSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(wavSampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
