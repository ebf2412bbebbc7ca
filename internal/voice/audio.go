package voice

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
)

// SampleRate is the PCM sample rate the speech service speaks, in Hz.
const SampleRate = 24000

// ErrOddFrame is returned when an encoded frame has a trailing half sample.
var ErrOddFrame = errors.New("pcm frame has odd byte length")

// EncodePCM16 packs 16-bit little-endian samples into a base64 string, the
// wire form for outbound frames.
func EncodePCM16(samples []int16) string {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodePCM16 is the inverse of EncodePCM16.
func DecodePCM16(encoded string) ([]int16, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(buf)%2 != 0 {
		return nil, ErrOddFrame
	}
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples, nil
}

// Level returns the normalized RMS level of a frame in [0, 1]. Computed for
// every captured frame, muted or not, so the UI meter keeps moving while the
// microphone is muted.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(samples))) / math.MaxInt16
}
