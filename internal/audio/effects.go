// Package audio applies post-processing effects to PCM16 WAV artifacts.
//
// Effects are an unordered set on the wire but run in a fixed pipeline:
// volume gain, fade-in, fade-out, speed, normalize. The pipeline order is
// fixed because the effects do not commute. Speed changes playback rate by
// resampling without pitch correction, so duration and perceived pitch both
// change.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"tts-worker-service/internal/faults"
)

// Effects carries the effect set for one post-processing pass.
// Zero values are no-ops; unknown keys in the source JSON are ignored.
type Effects struct {
	VolumeDB  float64 `json:"volume,omitempty"`
	FadeInMs  int     `json:"fade_in,omitempty"`
	FadeOutMs int     `json:"fade_out,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Normalize bool    `json:"normalize,omitempty"`
}

// normalize leaves 0.1 dB of headroom below full scale.
const normalizeHeadroomDB = 0.1

// speed factors outside this range are clamped; a tiny factor would multiply
// the sample count without bound.
const (
	minSpeedFactor = 0.25
	maxSpeedFactor = 4.0
)

// Apply decodes a PCM16 WAV, runs the effect pipeline and re-encodes with a
// canonical header. Same input and effects always produce identical bytes.
func Apply(wav []byte, fx Effects) ([]byte, error) {
	clip, err := decode(wav)
	if err != nil {
		return nil, err
	}

	if fx.VolumeDB != 0 {
		clip.gain(fx.VolumeDB)
	}
	if fx.FadeInMs > 0 {
		clip.fadeIn(fx.FadeInMs)
	}
	if fx.FadeOutMs > 0 {
		clip.fadeOut(fx.FadeOutMs)
	}
	if fx.Speed > 0 && fx.Speed != 1.0 {
		clip.speed(clampSpeed(fx.Speed))
	}
	if fx.Normalize {
		clip.normalize()
	}

	return clip.encode(), nil
}

// clip is decoded PCM16 audio. Samples are interleaved by channel.
type clip struct {
	samples    []int16
	channels   int
	sampleRate int
}

func (c *clip) frames() int {
	return len(c.samples) / c.channels
}

func (c *clip) gain(db float64) {
	factor := math.Pow(10, db/20)
	for i, s := range c.samples {
		c.samples[i] = clampSample(float64(s) * factor)
	}
}

func (c *clip) fadeIn(ms int) {
	n := c.sampleRate * ms / 1000
	if n > c.frames() {
		n = c.frames()
	}
	for f := 0; f < n; f++ {
		scale := float64(f) / float64(n)
		for ch := 0; ch < c.channels; ch++ {
			i := f*c.channels + ch
			c.samples[i] = clampSample(float64(c.samples[i]) * scale)
		}
	}
}

func (c *clip) fadeOut(ms int) {
	n := c.sampleRate * ms / 1000
	total := c.frames()
	if n > total {
		n = total
	}
	for f := total - n; f < total; f++ {
		scale := float64(total-f) / float64(n)
		for ch := 0; ch < c.channels; ch++ {
			i := f*c.channels + ch
			c.samples[i] = clampSample(float64(c.samples[i]) * scale)
		}
	}
}

// speed resamples by dropping or repeating frames. factor > 1 shortens the
// clip and raises pitch, factor < 1 stretches it and lowers pitch.
func (c *clip) speed(factor float64) {
	inFrames := c.frames()
	outFrames := int(float64(inFrames) / factor)
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]int16, outFrames*c.channels)
	for f := 0; f < outFrames; f++ {
		src := int(float64(f) * factor)
		if src >= inFrames {
			src = inFrames - 1
		}
		copy(out[f*c.channels:(f+1)*c.channels], c.samples[src*c.channels:(src+1)*c.channels])
	}
	c.samples = out
}

func (c *clip) normalize() {
	var peak float64
	for _, s := range c.samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	target := math.Pow(10, -normalizeHeadroomDB/20) * 32767
	factor := target / peak
	for i, s := range c.samples {
		c.samples[i] = clampSample(float64(s) * factor)
	}
}

func clampSpeed(f float64) float64 {
	if f < minSpeedFactor {
		return minSpeedFactor
	}
	if f > maxSpeedFactor {
		return maxSpeedFactor
	}
	return f
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func decode(data []byte) (*clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", faults.ErrProcessing)
	}

	var c clip
	var haveFmt, haveData bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", faults.ErrProcessing, id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", faults.ErrProcessing)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: only 16-bit PCM is supported", faults.ErrProcessing)
			}
			c.channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			c.sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			if c.channels < 1 || c.sampleRate < 1 {
				return nil, fmt.Errorf("%w: bad fmt chunk", faults.ErrProcessing)
			}
			haveFmt = true
		case "data":
			n := size / 2
			c.samples = make([]int16, n)
			for i := 0; i < n; i++ {
				c.samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i : body+2*i+2]))
			}
			haveData = true
		}
		// chunks are word-aligned
		if size%2 == 1 {
			size++
		}
		pos = body + size
	}

	if !haveFmt || !haveData {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", faults.ErrProcessing)
	}
	return &c, nil
}

// encode writes a canonical 44-byte header plus sample data.
func (c *clip) encode() []byte {
	dataLen := len(c.samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(c.sampleRate*c.channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(c.channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range c.samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:46+2*i], uint16(s))
	}
	return buf
}
