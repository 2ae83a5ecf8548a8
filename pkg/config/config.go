// The config package reads the run configuration from a TOML file:
//
//	origin             = 0x10000
//	load_address       = 0x10000
//	scratch_base       = 0x10000000
//	check_load_address = true
//	byte_order         = "big"
//	families           = ["integer", "float"]
//	shards             = 4
//	script             = "extra.lua"
//	log_level          = "info"
//	break              = ["fadd"]
//
// Every key is optional.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/harness"
)

var ErrUnknownKey = errors.New("unknown configuration key")

type Config struct {
	Origin           uint32   `toml:"origin"`
	LoadAddress      uint32   `toml:"load_address"`
	ScratchBase      uint32   `toml:"scratch_base"`
	CheckLoadAddress bool     `toml:"check_load_address"`
	ByteOrder        string   `toml:"byte_order"`
	Families         []string `toml:"families"`
	Shards           int      `toml:"shards"`
	Script           string   `toml:"script"`
	LogLevel         string   `toml:"log_level"`
	// Mnemonics the reference interpreter should get wrong.
	Break []string `toml:"break"`
}

func Default() Config {
	return Config{
		ByteOrder: "big",
		Shards:    1,
		LogLevel:  "info",
	}
}

// Read path on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	if err := checkKeys(md); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{"path": path}).Debug("configuration loaded")
	return c, c.Validate()
}

// Parse configuration text on top of the defaults.
func Parse(src string) (Config, error) {
	c := Default()
	md, err := toml.Decode(src, &c)
	if err != nil {
		return c, err
	}
	if err := checkKeys(md); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func checkKeys(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(names, ", "))
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := c.Order(); err != nil {
		return err
	}
	if _, err := c.FamilyList(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Shards < 1 {
		return fmt.Errorf("shards must be at least 1, saw %d", c.Shards)
	}
	return nil
}

func (c Config) Order() (binary.ByteOrder, error) {
	switch strings.ToLower(c.ByteOrder) {
	case "", "big":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("byte order %q is neither big nor little", c.ByteOrder)
}

// The enabled families. Empty means all of them.
func (c Config) FamilyList() ([]harness.Family, error) {
	var out []harness.Family
	for _, name := range c.Families {
		f, err := harness.ParseFamily(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (c Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(c.LogLevel)
}

// Harness options for this configuration. Call Validate first.
func (c Config) Options() harness.Options {
	order, _ := c.Order()
	return harness.Options{
		Origin:           c.Origin,
		LoadAddress:      c.LoadAddress,
		CheckLoadAddress: c.CheckLoadAddress,
		ScratchBase:      c.ScratchBase,
		Order:            order,
	}
}
