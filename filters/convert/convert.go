// Package convert implements sample-format conversion between raw
// float32, int16, and int8 component streams, with optional domain
// scaling between float [-1, 1] and fixed-point integer ranges.
// Grounded on bingewatch's filter/conversions.c (iq_type_conversion).
package convert

import (
	"encoding/binary"
	"math"

	"github.com/streamrig/streamrig/internal/filter"
)

// Format identifies a scalar sample component's on-wire encoding.
type Format int

const (
	// F32 is a little-endian IEEE-754 float32 component.
	F32 Format = iota
	// I16 is a little-endian signed 16-bit component.
	I16
	// I8 is a signed 8-bit component.
	I8
)

type formatDesc struct {
	size    int
	isFloat bool
	pull    func(dst []float64, src []byte) int
	push    func(dst []byte, src []float64) int
}

func pullF32(dst []float64, src []byte) int {
	n := len(src) / 4
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(src[i*4:])
		dst[i] = float64(math.Float32frombits(bits))
	}
	return n
}

func pushF32(dst []byte, src []float64) int {
	n := len(src)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(float32(src[i])))
	}
	return n * 4
}

func pullI16(dst []float64, src []byte) int {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(src[i*2:]))
		dst[i] = float64(v)
	}
	return n
}

func pushI16(dst []byte, src []float64) int {
	n := len(src)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(src[i])))
	}
	return n * 2
}

func pullI8(dst []float64, src []byte) int {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = float64(int8(src[i]))
	}
	return n
}

func pushI8(dst []byte, src []float64) int {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = byte(int8(src[i]))
	}
	return n
}

func descFor(f Format) formatDesc {
	switch f {
	case F32:
		return formatDesc{size: 4, isFloat: true, pull: pullF32, push: pushF32}
	case I16:
		return formatDesc{size: 2, isFloat: false, pull: pullI16, push: pushI16}
	default:
		return formatDesc{size: 1, isFloat: false, pull: pullI8, push: pushI8}
	}
}

func scaleFactor(precision int) float64 {
	return float64((int(1) << (precision - 1)) - 1)
}

func scaleFloatToInt(precision int, buf []float64) {
	s := scaleFactor(precision)
	if s == 1 {
		return
	}
	for i := range buf {
		buf[i] *= s
	}
}

func scaleIntToFloat(precision int, buf []float64) {
	s := scaleFactor(precision)
	if s == 1 {
		return
	}
	for i := range buf {
		buf[i] /= s
	}
}

// Converter holds the scratch state for one direction of a conversion
// filter, the Go analogue of GCB (generic_conversion_buf_t).
type Converter struct {
	from, to  formatDesc
	precision int
	tmp       []float64
}

// NewFilter creates a bidirectional conversion filter between from and
// to component formats, scaling through precision-bit fixed point when
// crossing the float/integer domain boundary. Mirrors
// create_conversion_filter; direction is set by the chain it's spliced
// into (filter.SpliceHead), matching the original's single filter
// function dispatching on IO_FILTER_ARGS_FILTER->direction.
func NewFilter(name string, from, to Format, precision int) *filter.Filter {
	c := &Converter{from: descFor(from), to: descFor(to), precision: precision}
	return filter.New(name, filter.Bidirectional, c.call)
}

func (c *Converter) call(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
	switch f.Direction {
	case filter.WriteDirection:
		return c.convertWrite(f, buf, length, mode, align)
	case filter.ReadDirection:
		return c.convertRead(f, buf, length, mode, align)
	default:
		return filter.StatusError
	}
}

func (c *Converter) scratchFloats(n int) []float64 {
	if cap(c.tmp) < n {
		c.tmp = make([]float64, n)
	}
	return c.tmp[:n]
}

// convertWrite converts buf (c.from-format components) to c.to format
// and forwards the converted bytes to the next filter, the "data
// comes from the previous filter" branch of iq_type_conversion. If the
// downstream chain consumes only part of the converted buffer, that
// count is scaled back through the size ratio before being reported.
func (c *Converter) convertWrite(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
	n := *length / c.from.size
	tmp := c.scratchFloats(n)
	nFloats := c.from.pull(tmp, buf[:n*c.from.size])

	if c.to.isFloat != c.from.isFloat {
		if c.to.isFloat {
			scaleIntToFloat(c.precision, tmp[:nFloats])
		} else {
			scaleFloatToInt(c.precision, tmp[:nFloats])
		}
	}

	outBytes := nFloats * c.to.size
	out := getBytes(outBytes)
	defer putBytes(out)
	written := c.to.push(out, tmp[:nFloats])

	outLen := written
	status := filter.Invoke(f.Next, out[:outLen], &outLen, mode, c.to.size)
	*length = (outLen / c.to.size) * c.from.size
	return status
}

// convertRead pulls c.from-format bytes from the next filter and
// converts them into c.to format for the caller, the "data comes from
// the next filter" branch of iq_type_conversion.
func (c *Converter) convertRead(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
	toSamples := *length / c.to.size
	fromBytes := toSamples * c.from.size

	in := getBytes(fromBytes)
	defer putBytes(in)
	readLen := fromBytes
	status := filter.Invoke(f.Next, in[:readLen], &readLen, mode, c.from.size)

	n := readLen / c.from.size
	tmp := c.scratchFloats(n)
	nFloats := c.from.pull(tmp, in[:readLen])

	if c.to.isFloat != c.from.isFloat {
		if c.to.isFloat {
			scaleIntToFloat(c.precision, tmp[:nFloats])
		} else {
			scaleFloatToInt(c.precision, tmp[:nFloats])
		}
	}

	written := c.to.push(buf, tmp[:nFloats])
	*length = written
	return status
}
