// The record package writes and reads failure records: fixed 32-byte
// entries of eight words laid out as
//
//	[instruction word][instruction address][aux0 .. aux5]
//
// into a caller supplied buffer. The meaning of the aux words depends
// on which checker produced the record.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/asm"
)

const (
	Size     = 32
	AuxWords = 6
)

var ErrBufferFull = errors.New("failure buffer full")

type Record struct {
	Insn uint32
	Addr uint32
	Aux  [AuxWords]uint32
}

// A failure buffer with a write cursor.
type Buffer struct {
	buf    []byte
	order  binary.ByteOrder
	cursor int
}

// Wrap buf. Records are written in order (big-endian for the PPU ABI).
func NewBuffer(buf []byte, order binary.ByteOrder) *Buffer {
	if order == nil {
		order = binary.BigEndian
	}
	return &Buffer{buf: buf, order: order}
}

// Number of records the buffer can hold.
func (b *Buffer) Capacity() int {
	return len(b.buf) / Size
}

// Number of records written so far.
func (b *Buffer) Count() int {
	return b.cursor / Size
}

func (b *Buffer) Bytes() []byte {
	return b.buf[:b.cursor]
}

// A record under construction. Checkers fill the aux words after the
// header has been written.
type Slot struct {
	b   *Buffer
	off int
}

// Start a record: write the instruction word and its address, clear
// the aux words and advance the cursor.
func (b *Buffer) Record(insn, addr uint32) (*Slot, error) {
	if b.cursor+Size > len(b.buf) {
		fields := logrus.Fields{
			"insn": fmt.Sprintf("0x%08x", insn),
			"addr": fmt.Sprintf("0x%08x", addr),
		}
		logrus.WithFields(fields).Warn("failure buffer full, record dropped")
		return nil, ErrBufferFull
	}
	off := b.cursor
	b.order.PutUint32(b.buf[off:], insn)
	b.order.PutUint32(b.buf[off+4:], addr)
	for i := 8; i < Size; i++ {
		b.buf[off+i] = 0
	}
	b.cursor += Size
	return &Slot{b: b, off: off}, nil
}

func (s *Slot) SetAux(i int, v uint32) {
	s.b.order.PutUint32(s.b.buf[s.off+8+4*i:], v)
}

// Append a complete record.
func (b *Buffer) Append(r Record) error {
	s, err := b.Record(r.Insn, r.Addr)
	if err != nil {
		return err
	}
	for i, v := range r.Aux {
		s.SetAux(i, v)
	}
	return nil
}

// Read n records from buf.
func Decode(buf []byte, n int, order binary.ByteOrder) ([]Record, error) {
	if order == nil {
		order = binary.BigEndian
	}
	if n < 0 || n*Size > len(buf) {
		return nil, fmt.Errorf("record: %d records do not fit in %d bytes", n, len(buf))
	}
	rv := make([]Record, n)
	for i := range rv {
		off := i * Size
		rv[i].Insn = order.Uint32(buf[off:])
		rv[i].Addr = order.Uint32(buf[off+4:])
		for j := 0; j < AuxWords; j++ {
			rv[i].Aux[j] = order.Uint32(buf[off+8+4*j:])
		}
	}
	return rv, nil
}

func (r Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failed inst: 0x%x (%s), addr 0x%x\n", r.Insn, asm.Disassemble(r.Insn), r.Addr)
	fmt.Fprintf(&sb, "Aux Data: 0x%x 0x%x\n", r.Aux[0], r.Aux[1])
	fmt.Fprintf(&sb, "0x%x 0x%x 0x%x 0x%x", r.Aux[2], r.Aux[3], r.Aux[4], r.Aux[5])
	return sb.String()
}
