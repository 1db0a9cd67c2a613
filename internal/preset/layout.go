package preset

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Firmware limits that fix the shape of the record.
const (
	TracesMax        = 4
	BandsMax         = 8
	BandNameSize     = 9
	MarkersMax       = 8
	LimitsMax        = 8
	ReferenceMax     = TracesMax
	PresetNameLength = 10
)

const (
	// Size is the byte length of a preset record.
	Size = 1584

	// Magic identifies a settings record.
	Magic uint32 = 0x434f4e6d

	// ChecksumOffset is where the checksum field starts. Everything before
	// it is covered by the checksum; the 4 bytes after it are padding.
	ChecksumOffset = 1576

	checksumWords = ChecksumOffset / 4
)

func init() {
	var c cursor
	new(Preset).walk(&c)
	if c.off != Size {
		panic(fmt.Sprintf("preset: layout is %d bytes, want %d", c.off, Size))
	}
}

// cursor walks the record field by field. Every scalar sits at its natural
// alignment and every sub-record is 8-byte aligned and padded to a multiple
// of 8, the layout the firmware's compiler produces. With a nil buf the
// cursor only measures.
type cursor struct {
	buf   []byte
	off   int
	write bool
}

func (c *cursor) align(n int) {
	c.off = (c.off + n - 1) / n * n
}

// field returns the next n-byte scalar slot at its natural alignment.
func (c *cursor) field(n int) []byte {
	c.align(n)
	return c.span(n)
}

// span returns the next n bytes without alignment, or nil when measuring.
func (c *cursor) span(n int) []byte {
	var b []byte
	if c.buf != nil {
		b = c.buf[c.off : c.off+n]
	}
	c.off += n
	return b
}

// record brackets a sub-record.
func (c *cursor) record(walk func()) {
	c.align(8)
	walk()
	c.align(8)
}

func (c *cursor) u8(v *uint8) {
	b := c.field(1)
	switch {
	case b == nil:
	case c.write:
		b[0] = *v
	default:
		*v = b[0]
	}
}

func (c *cursor) i8(v *int8) {
	u := uint8(*v)
	c.u8(&u)
	*v = int8(u)
}

func (c *cursor) boolean(v *bool) {
	var u uint8
	if *v {
		u = 1
	}
	c.u8(&u)
	*v = u != 0
}

func (c *cursor) u16(v *uint16) {
	b := c.field(2)
	switch {
	case b == nil:
	case c.write:
		binary.LittleEndian.PutUint16(b, *v)
	default:
		*v = binary.LittleEndian.Uint16(b)
	}
}

func (c *cursor) i16(v *int16) {
	u := uint16(*v)
	c.u16(&u)
	*v = int16(u)
}

func (c *cursor) u32(v *uint32) {
	b := c.field(4)
	switch {
	case b == nil:
	case c.write:
		binary.LittleEndian.PutUint32(b, *v)
	default:
		*v = binary.LittleEndian.Uint32(b)
	}
}

func (c *cursor) i32(v *int32) {
	u := uint32(*v)
	c.u32(&u)
	*v = int32(u)
}

func (c *cursor) f32(v *float32) {
	u := math.Float32bits(*v)
	c.u32(&u)
	*v = math.Float32frombits(u)
}

func (c *cursor) u64(v *uint64) {
	b := c.field(8)
	switch {
	case b == nil:
	case c.write:
		binary.LittleEndian.PutUint64(b, *v)
	default:
		*v = binary.LittleEndian.Uint64(b)
	}
}

func (c *cursor) i64(v *int64) {
	u := uint64(*v)
	c.u64(&u)
	*v = int64(u)
}

// chars maps a fixed NUL-padded Latin-1 field to a string. Runes outside
// Latin-1 are written as '?', and long strings are cut to n bytes.
func (c *cursor) chars(v *string, n int) {
	b := c.span(n)
	if b == nil {
		return
	}

	if c.write {
		clear(b)
		i := 0
		for _, r := range *v {
			if i == n {
				break
			}
			if r > 0xff {
				r = '?'
			}
			b[i] = byte(r)
			i++
		}
		return
	}

	runes := make([]rune, 0, n)
	for _, ch := range b {
		if ch == 0 {
			break
		}
		runes = append(runes, rune(ch))
	}
	*v = string(runes)
}
