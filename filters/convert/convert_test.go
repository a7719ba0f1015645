package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/streamrig/streamrig/internal/filter"
)

func encodeF32(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeI16(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return out
}

func TestConvertWriteFloatToInt16ScalesAndForwards(t *testing.T) {
	var captured []byte
	sink := filter.New("sink", filter.WriteDirection, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		captured = append([]byte(nil), buf[:*length]...)
		return filter.StatusSuccess
	})

	conv := NewFilter("conv", F32, I16, 16)
	conv.Direction = filter.WriteDirection
	conv.Next = sink

	src := encodeF32([]float32{1.0, -1.0, 0.5})
	length := len(src)
	status := filter.Invoke(conv, src, &length, filter.Block, 1)

	if status != filter.StatusSuccess {
		t.Fatalf("status = %v, want success", status)
	}
	if length != len(src) {
		t.Fatalf("length = %d, want %d (full consumption)", length, len(src))
	}

	got := decodeI16(captured)
	want := int16(1<<15 - 1)
	if got[0] != want {
		t.Fatalf("sample 0 = %d, want %d", got[0], want)
	}
	if got[1] != -want {
		t.Fatalf("sample 1 = %d, want %d", got[1], -want)
	}
}

func TestConvertReadInt16ToFloatScalesFromUpstream(t *testing.T) {
	upstream := encodeI16Samples([]int16{1<<15 - 1, -(1<<15 - 1), 0})

	src := filter.New("src", filter.ReadDirection, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		n := copy(buf, upstream)
		*length = n
		return filter.StatusSuccess
	})

	conv := NewFilter("conv", I16, F32, 16)
	conv.Direction = filter.ReadDirection
	conv.Next = src

	dst := make([]byte, 3*4)
	length := len(dst)
	status := filter.Invoke(conv, dst, &length, filter.Block, 1)

	if status != filter.StatusSuccess {
		t.Fatalf("status = %v, want success", status)
	}

	floats := decodeF32(dst[:length])
	if math.Abs(float64(floats[0])-1.0) > 0.001 {
		t.Fatalf("sample 0 = %v, want ~1.0", floats[0])
	}
	if math.Abs(float64(floats[2])) > 0.001 {
		t.Fatalf("sample 2 = %v, want ~0.0", floats[2])
	}
}

func encodeI16Samples(vals []int16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func decodeF32(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func TestSameFormatConversionIsIdentity(t *testing.T) {
	var captured []byte
	sink := filter.New("sink", filter.WriteDirection, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		captured = append([]byte(nil), buf[:*length]...)
		return filter.StatusSuccess
	})

	conv := NewFilter("conv", I8, I8, 8)
	conv.Direction = filter.WriteDirection
	conv.Next = sink

	src := []byte{1, 2, 3, 4}
	length := len(src)
	filter.Invoke(conv, src, &length, filter.Block, 1)

	if string(captured) != string(src) {
		t.Fatalf("captured = %v, want %v", captured, src)
	}
}
