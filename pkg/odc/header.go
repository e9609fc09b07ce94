package odc

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/pool"
)

// Frame header wire layout, all little-endian:
//
//	magic      [5]byte  FF FF 'O' 'D' 'A'
//	version    uint16
//	codec      uint8    payload compression id
//	ncols      uint32
//	nrows      uint32
//	rawLen     uint32   uncompressed payload length
//	payloadLen uint32   on-the-wire payload length
//	ncols column descriptors:
//	  nameLen uint16 | name | type uint8
//	  STRING:   width uint16
//	  BITFIELD: nbits uint8, per sub-field: nameLen uint16 | name | offset uint8 | size uint8
var magic = [5]byte{0xFF, 0xFF, 'O', 'D', 'A'}

const formatVersion uint16 = 1

// maxColumns bounds the descriptor count a reader will accept, so a corrupt
// header cannot drive allocation.
const maxColumns = 1 << 16

// ColumnDesc describes one column of a frame schema: its name, datatype and
// the datatype-specific layout parameters.
type ColumnDesc struct {
	Name string
	Type DataType
	// Width is the fixed byte width of a String cell. Zero for other types.
	Width uint16
	// Bits is the sub-field layout of a Bitfield column. Nil for other types.
	Bits []columnar.BitfieldField
}

// CellWidth returns the payload bytes one row of this column occupies.
func (d ColumnDesc) CellWidth() int {
	switch d.Type {
	case Ignore:
		return 0
	case Integer, Real, Bitfield:
		return 4
	case Double:
		return 8
	case String:
		return int(d.Width)
	default:
		return 0
	}
}

// frameHeader is the parsed header of one physical frame.
type frameHeader struct {
	codec      uint8
	columns    []ColumnDesc
	rows       uint32
	rawLen     uint32
	payloadLen uint32
}

// rawSize returns the payload size the schema implies for the row count.
func (h *frameHeader) rawSize() int {
	total := 0
	for _, c := range h.columns {
		total += c.CellWidth() * int(h.rows)
	}
	return total
}

// writeHeader serializes a frame header.
func writeHeader(w io.Writer, h *frameHeader) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.Write(magic[:])
	putUint16(buf, formatVersion)
	buf.WriteByte(h.codec)
	putUint32(buf, uint32(len(h.columns)))
	putUint32(buf, h.rows)
	putUint32(buf, h.rawLen)
	putUint32(buf, h.payloadLen)

	for _, c := range h.columns {
		putUint16(buf, uint16(len(c.Name)))
		buf.WriteString(c.Name)
		buf.WriteByte(uint8(c.Type))
		switch c.Type {
		case String:
			putUint16(buf, c.Width)
		case Bitfield:
			buf.WriteByte(uint8(len(c.Bits)))
			for _, f := range c.Bits {
				putUint16(buf, uint16(len(f.Name)))
				buf.WriteString(f.Name)
				buf.WriteByte(f.Offset)
				buf.WriteByte(f.Size)
			}
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "write frame header")
	}
	return nil
}

// headerReader counts consumed bytes so the scanner can record frame offsets.
type headerReader struct {
	r io.Reader
	n int64
}

func (hr *headerReader) full(p []byte) error {
	n, err := io.ReadFull(hr.r, p)
	hr.n += int64(n)
	return err
}

func (hr *headerReader) u8() (uint8, error) {
	var b [1]byte
	if err := hr.full(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (hr *headerReader) u16() (uint16, error) {
	var b [2]byte
	if err := hr.full(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (hr *headerReader) u32() (uint32, error) {
	var b [4]byte
	if err := hr.full(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (hr *headerReader) str(n int) (string, error) {
	b := make([]byte, n)
	if err := hr.full(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// readHeader parses the next frame header. It returns io.EOF untouched when
// the source ends cleanly before any header byte; anything shorter than a
// complete header is a format error.
func readHeader(r io.Reader) (*frameHeader, int64, error) {
	hr := &headerReader{r: r}

	var m [5]byte
	if err := hr.full(m[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, hr.n, headerErr(err)
	}
	if m != magic {
		return nil, hr.n, errors.New(errors.ErrorTypeFormat, "bad magic, not an ODC frame")
	}

	version, err := hr.u16()
	if err != nil {
		return nil, hr.n, headerErr(err)
	}
	if version != formatVersion {
		return nil, hr.n, errors.Newf(errors.ErrorTypeFormat, "unsupported format version %d", version)
	}

	h := &frameHeader{}
	if h.codec, err = hr.u8(); err != nil {
		return nil, hr.n, headerErr(err)
	}
	ncols, err := hr.u32()
	if err != nil {
		return nil, hr.n, headerErr(err)
	}
	if ncols > maxColumns {
		return nil, hr.n, errors.Newf(errors.ErrorTypeFormat, "implausible column count %d", ncols)
	}
	if h.rows, err = hr.u32(); err != nil {
		return nil, hr.n, headerErr(err)
	}
	if h.rawLen, err = hr.u32(); err != nil {
		return nil, hr.n, headerErr(err)
	}
	if h.payloadLen, err = hr.u32(); err != nil {
		return nil, hr.n, headerErr(err)
	}

	h.columns = make([]ColumnDesc, 0, ncols)
	for i := uint32(0); i < ncols; i++ {
		desc, err := readColumnDesc(hr)
		if err != nil {
			return nil, hr.n, err
		}
		h.columns = append(h.columns, desc)
	}

	if h.rawSize() != int(h.rawLen) {
		return nil, hr.n, errors.Newf(errors.ErrorTypeFormat,
			"payload length %d inconsistent with schema (want %d)", h.rawLen, h.rawSize())
	}

	return h, hr.n, nil
}

func readColumnDesc(hr *headerReader) (ColumnDesc, error) {
	var desc ColumnDesc

	nameLen, err := hr.u16()
	if err != nil {
		return desc, headerErr(err)
	}
	if desc.Name, err = hr.str(int(nameLen)); err != nil {
		return desc, headerErr(err)
	}

	code, err := hr.u8()
	if err != nil {
		return desc, headerErr(err)
	}
	if !validDataType(code) {
		return desc, errors.Newf(errors.ErrorTypeFormat,
			"unknown datatype code %d", code).WithColumn(desc.Name)
	}
	desc.Type = DataType(code)

	switch desc.Type {
	case String:
		if desc.Width, err = hr.u16(); err != nil {
			return desc, headerErr(err)
		}
		if desc.Width == 0 {
			return desc, errors.New(errors.ErrorTypeFormat,
				"string column with zero width").WithColumn(desc.Name)
		}
	case Bitfield:
		nbits, err := hr.u8()
		if err != nil {
			return desc, headerErr(err)
		}
		desc.Bits = make([]columnar.BitfieldField, 0, nbits)
		for j := uint8(0); j < nbits; j++ {
			fnameLen, err := hr.u16()
			if err != nil {
				return desc, headerErr(err)
			}
			fname, err := hr.str(int(fnameLen))
			if err != nil {
				return desc, headerErr(err)
			}
			offset, err := hr.u8()
			if err != nil {
				return desc, headerErr(err)
			}
			size, err := hr.u8()
			if err != nil {
				return desc, headerErr(err)
			}
			if size == 0 || int(offset)+int(size) > 32 {
				return desc, errors.Newf(errors.ErrorTypeFormat,
					"bitfield sub-field %q does not fit a 32-bit word", fname).WithColumn(desc.Name)
			}
			desc.Bits = append(desc.Bits, columnar.BitfieldField{Name: fname, Offset: offset, Size: size})
		}
	}

	return desc, nil
}

// headerErr classifies a read failure inside a header: truncation is a format
// error, everything else is the source's own failure.
func headerErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(err, errors.ErrorTypeFormat, "truncated frame header")
	}
	return errors.Wrap(err, errors.ErrorTypeIO, "read frame header")
}

func putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
