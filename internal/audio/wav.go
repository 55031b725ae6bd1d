package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

type wavFormat struct {
	format        uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeWAV parses a RIFF/WAVE buffer holding integer PCM (8/16/24/32 bit)
// or 32/64-bit float samples.
func decodeWAV(data []byte) (*Track, error) {
	var (
		fmtChunk *wavFormat
		payload  []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		end := body + size
		if end > len(data) || end < body {
			// Truncated final chunk: take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			f, err := parseWAVFormat(data[body:end])
			if err != nil {
				return nil, err
			}
			fmtChunk = f
		case "data":
			payload = data[body:end]
		}

		pos = end + size%2 // chunks are word aligned
		if payload != nil && fmtChunk != nil {
			break
		}
	}

	if fmtChunk == nil {
		return nil, errors.New("missing fmt chunk")
	}
	if payload == nil {
		return nil, errors.New("missing data chunk")
	}
	return wavSamples(fmtChunk, payload)
}

func parseWAVFormat(b []byte) (*wavFormat, error) {
	if len(b) < 16 {
		return nil, errors.New("short fmt chunk")
	}
	f := &wavFormat{
		format:        binary.LittleEndian.Uint16(b[0:]),
		channels:      int(binary.LittleEndian.Uint16(b[2:])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:])),
	}
	if f.format == wavFormatExtensible && len(b) >= 26 {
		f.format = binary.LittleEndian.Uint16(b[24:])
	}
	if f.channels < 1 {
		return nil, errors.New("zero channels")
	}
	if f.sampleRate <= 0 {
		return nil, errors.New("invalid sample rate")
	}
	return f, nil
}

func wavSamples(f *wavFormat, payload []byte) (*Track, error) {
	if f.bitsPerSample%8 != 0 {
		return nil, fmt.Errorf("unsupported wav bit depth: %d", f.bitsPerSample)
	}
	width := f.bitsPerSample / 8
	var read func([]byte) float32

	switch {
	case f.format == wavFormatPCM && width == 1:
		read = func(b []byte) float32 { return (float32(b[0]) - 128) / 128 }
	case f.format == wavFormatPCM && width == 2:
		read = func(b []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(b))) / 32768 }
	case f.format == wavFormatPCM && width == 3:
		read = func(b []byte) float32 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float32(v) / 8388608
		}
	case f.format == wavFormatPCM && width == 4:
		read = func(b []byte) float32 { return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483648 }
	case f.format == wavFormatFloat && width == 4:
		read = func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	case f.format == wavFormatFloat && width == 8:
		read = func(b []byte) float32 { return float32(math.Float64frombits(binary.LittleEndian.Uint64(b))) }
	default:
		return nil, fmt.Errorf("unsupported wav encoding: format %d, %d bits", f.format, f.bitsPerSample)
	}

	block := width * f.channels
	n := len(payload) / block
	keep := f.channels
	if keep > 2 {
		keep = 2
	}
	chans := make([][]float32, keep)
	for c := range chans {
		chans[c] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		frame := payload[i*block:]
		for c := 0; c < keep; c++ {
			chans[c][i] = read(frame[c*width:])
		}
	}
	return NewTrack(f.sampleRate, chans), nil
}

// EncodeWAV renders t as a 16-bit PCM stereo WAV file.
func EncodeWAV(t *Track) []byte {
	n := t.Len()
	dataLen := n * Channels * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:], Channels)
	binary.LittleEndian.PutUint32(buf[24:], uint32(t.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(t.SampleRate*Channels*2))
	binary.LittleEndian.PutUint16(buf[32:], Channels*2)
	binary.LittleEndian.PutUint16(buf[34:], BitDepth)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))

	pos := 44
	for i := 0; i < n; i++ {
		for c := 0; c < Channels; c++ {
			binary.LittleEndian.PutUint16(buf[pos:], uint16(toInt16(t.Channels[c][i])))
			pos += 2
		}
	}
	return buf
}
