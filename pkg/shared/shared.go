package shared

// A memory backend designed to be attached to multiple CPUs at the same
// time. One goroutine owns the bytes; every access is a message to it.

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

type op interface {
	execute(*sharedMemoryBackend)
}

type SharedMemory struct {
	cmd  chan op
	size uint32
}

type sharedMemoryBackend struct {
	memory []byte
	cmd    chan op
}

type setWord struct {
	addr  uint32
	value uint32
	ret   chan uint32
}

type getWord struct {
	addr uint32
	ret  chan uint32
}

type fill struct {
	addr, size uint32
	value      byte
	ret        chan struct{}
}

func (c getWord) execute(b *sharedMemoryBackend) {
	fields := logrus.Fields{
		"addr": c.addr,
		"op":   "get",
	}
	logrus.WithFields(fields).Trace("get value")
	if !b.holds(c.addr, 4) {
		logrus.WithFields(fields).Warn("read outside shared memory")
		c.ret <- 0
		return
	}

	c.ret <- binary.BigEndian.Uint32(b.memory[c.addr:])
}

func (c setWord) execute(b *sharedMemoryBackend) {
	fields := logrus.Fields{
		"addr":  c.addr,
		"value": c.value,
		"op":    "set",
	}
	logrus.WithFields(fields).Trace("set value")
	if !b.holds(c.addr, 4) {
		logrus.WithFields(fields).Warn("write outside shared memory")
		c.ret <- 0
		return
	}
	rv := binary.BigEndian.Uint32(b.memory[c.addr:])
	binary.BigEndian.PutUint32(b.memory[c.addr:], c.value)

	c.ret <- rv
}

func (c fill) execute(b *sharedMemoryBackend) {
	fields := logrus.Fields{
		"addr": c.addr,
		"size": c.size,
		"op":   "fill",
	}
	logrus.WithFields(fields).Trace("fill range")
	if !b.holds(c.addr, c.size) {
		logrus.WithFields(fields).Warn("fill outside shared memory")
		c.ret <- struct{}{}
		return
	}
	for i := c.addr; i < c.addr+c.size; i++ {
		b.memory[i] = c.value
	}
	c.ret <- struct{}{}
}

// Whether n bytes from addr lie inside the memory.
func (b *sharedMemoryBackend) holds(addr, n uint32) bool {
	size := uint64(len(b.memory))
	return uint64(addr)+uint64(n) <= size
}

func (b *sharedMemoryBackend) run() {
	for cmd := range b.cmd {
		cmd.execute(b)
	}
}

// Serve buf to any number of CPUs. The caller keeps ownership of buf
// but must not touch it until Close has been called.
func NewSharedMemory(buf []byte) SharedMemory {
	c := make(chan op)
	backend := sharedMemoryBackend{cmd: c, memory: buf}
	go backend.run()

	return SharedMemory{cmd: c, size: uint32(len(buf))}
}

// Stop the owning goroutine. No access may follow.
func (s SharedMemory) Close() {
	close(s.cmd)
}

func (s SharedMemory) Size() uint32 {
	return s.size
}

func (s SharedMemory) FetchWord(addr uint32) uint32 {
	c := make(chan uint32)
	op := getWord{addr: addr, ret: c}
	s.cmd <- op
	rv := <-c
	close(c)
	return rv
}

func (s SharedMemory) WriteWord(addr uint32, data uint32) uint32 {
	c := make(chan uint32)
	op := setWord{addr: addr, value: data, ret: c}
	s.cmd <- op
	rv := <-c
	close(c)
	return rv
}

// Set size bytes from addr to value.
func (s SharedMemory) Fill(addr, size uint32, value byte) {
	c := make(chan struct{})
	s.cmd <- fill{addr: addr, size: size, value: value, ret: c}
	<-c
	close(c)
}

// A view of part of a SharedMemory. Offsets are relative to the start
// of the window and must stay inside it.
type Window struct {
	mem        SharedMemory
	base, size uint32
}

// Carve out size bytes starting at base.
func (s SharedMemory) Window(base, size uint32) (Window, error) {
	if base+size > s.size || base+size < base {
		return Window{}, fmt.Errorf("window 0x%x+0x%x outside shared memory of 0x%x bytes", base, size, s.size)
	}
	logrus.WithFields(logrus.Fields{"base": base, "size": size}).Debug("new shared window")
	return Window{mem: s, base: base, size: size}, nil
}

func (w Window) Size() uint32 {
	return w.size
}

func (w Window) FetchWord(addr uint32) uint32 {
	return w.mem.FetchWord(w.base + addr)
}

func (w Window) WriteWord(addr uint32, data uint32) uint32 {
	return w.mem.WriteWord(w.base+addr, data)
}

func (w Window) Fill(addr, size uint32, value byte) {
	w.mem.Fill(w.base+addr, size, value)
}
