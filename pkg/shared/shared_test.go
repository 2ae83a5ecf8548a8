package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatine/ppuconform/pkg/cpu"
)

func TestShared(t *testing.T) {
	buf := make([]byte, 16)
	s := NewSharedMemory(buf)

	c1 := cpu.NewCPU()
	c2 := cpu.NewCPU()

	r := cpu.MemoryRange{Low: 0, High: 15}

	c1.RegisterMemory(r, s)
	c2.RegisterMemory(r, s)

	c1.StoreWord(0, 0x12345678)
	c1.StoreWord(4, 0x9abcdef0)

	v := c2.FetchWord(2)

	if v != 0x56789abc {
		t.Errorf("Expected 0x56789abc, saw 0x%08x", v)
	}
	s.Close()
	if buf[0] != 0x12 || buf[7] != 0xf0 {
		t.Errorf("caller buffer not updated: % x", buf)
	}
}

func TestWindows(t *testing.T) {
	buf := make([]byte, 64)
	s := NewSharedMemory(buf)
	defer s.Close()

	_, err := s.Window(48, 32)
	require.Error(t, err)

	var wg sync.WaitGroup
	for i := uint32(0); i < 4; i++ {
		w, err := s.Window(16*i, 16)
		require.NoError(t, err)
		wg.Add(1)
		go func(i uint32, w Window) {
			defer wg.Done()
			c := cpu.NewCPU()
			assert.NoError(t, c.Attach(0x1000, w, w.Size()))
			for off := uint32(0); off < 16; off += 4 {
				c.StoreWord(0x1000+off, i<<8|off)
			}
		}(i, w)
	}
	wg.Wait()

	for i := uint32(0); i < 4; i++ {
		for off := uint32(0); off < 16; off += 4 {
			assert.Equal(t, i<<8|off, s.FetchWord(16*i+off), "window %d offset %d", i, off)
		}
	}

	w, _ := s.Window(16, 16)
	w.Fill(0, 16, 0)
	assert.Equal(t, uint32(0), s.FetchWord(16))
	assert.Equal(t, uint32(2<<8), s.FetchWord(32))
}

func TestOutOfRange(t *testing.T) {
	buf := make([]byte, 16)
	s := NewSharedMemory(buf)
	defer s.Close()

	cases := []uint32{13, 14, 15, 16, 0xfffffffe}
	for ix, addr := range cases {
		assert.NotPanics(t, func() {
			assert.Equal(t, uint32(0), s.WriteWord(addr, 0xffffffff), "Case #%d", ix)
			assert.Equal(t, uint32(0), s.FetchWord(addr), "Case #%d", ix)
		}, "Case #%d", ix)
	}
	s.Fill(8, 9, 0xff)

	s.WriteWord(12, 0x01020304)
	assert.Equal(t, uint32(0x01020304), s.FetchWord(12))
	assert.Equal(t, uint32(0), s.FetchWord(8))
}
