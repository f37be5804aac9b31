package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Sushi-Mampfer/notes/constant"
)

var ErrInvalidWav = errors.New("invalid wav data")

// Decode reads a wav container and returns its samples normalized to
// [-1, 1], still interleaved, together with the sample rate and channel
// count.
func Decode(r io.Reader) (samples []float32, sampleRate, channels int, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read wav: %w", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(raw))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	if !dec.WasPCMAccessed() || buf.Format == nil {
		return nil, 0, 0, ErrInvalidWav
	}
	// The decoder passes header fields through unchecked; a crafted fmt
	// chunk can declare a zero rate or channel count.
	if buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, 0, 0, ErrInvalidWav
	}

	scale := float32(int(1) << (dec.BitDepth - 1))
	samples = make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// Encode16kMono packs mono 16 kHz float samples into a 16-bit PCM wav
// container, the shape the ASR transport expects.
func Encode16kMono(samples []float32) ([]byte, error) {
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  constant.TargetSampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, constant.TargetSampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return ws.buf, nil
}

// writeSeeker adapts an in-memory buffer to io.WriteSeeker; the wav
// encoder seeks back to patch chunk sizes.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		grown := make([]byte, need)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = w.pos + int(offset)
	case io.SeekEnd:
		next = len(w.buf) + int(offset)
	default:
		return 0, fmt.Errorf("unsupported whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	w.pos = next
	return int64(next), nil
}
