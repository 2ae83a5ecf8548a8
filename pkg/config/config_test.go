package config

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatine/ppuconform/pkg/harness"
)

func TestDefaults(t *testing.T) {
	c, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	opts := c.Options()
	assert.Equal(t, binary.BigEndian, opts.Order)
	assert.Zero(t, opts.Origin)
	fams, err := c.FamilyList()
	require.NoError(t, err)
	assert.Empty(t, fams)
}

func TestParse(t *testing.T) {
	src := `
origin = 0x20000
load_address = 0x30000
check_load_address = true
byte_order = "little"
families = ["float", "vector"]
shards = 4
script = "extra.lua"
log_level = "debug"
break = ["fadd", "lwz"]
`
	c, err := Parse(src)
	require.NoError(t, err)

	opts := c.Options()
	assert.Equal(t, uint32(0x20000), opts.Origin)
	assert.Equal(t, uint32(0x30000), opts.LoadAddress)
	assert.True(t, opts.CheckLoadAddress)
	assert.Equal(t, binary.LittleEndian, opts.Order)

	fams, err := c.FamilyList()
	require.NoError(t, err)
	assert.Equal(t, []harness.Family{harness.FamilyFloat, harness.FamilyVector}, fams)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)

	assert.Equal(t, 4, c.Shards)
	assert.Equal(t, "extra.lua", c.Script)
	assert.Equal(t, []string{"fadd", "lwz"}, c.Break)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		src     string
		unknown bool
	}{
		{`byte_order = "middle"`, false},
		{`families = ["integer", "decimal"]`, false},
		{`log_level = "chatty"`, false},
		{`shards = 0`, false},
		{`origin = "here"`, false},
		{`colour = true`, true},
	}
	for ix, tc := range cases {
		_, err := Parse(tc.src)
		if err == nil {
			t.Errorf("Case #%d, expected an error, saw none", ix)
			continue
		}
		if tc.unknown != errors.Is(err, ErrUnknownKey) {
			t.Errorf("Case #%d, unexpected error %v", ix, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte("shards = 2\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Shards)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
