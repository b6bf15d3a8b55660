// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for ttinfo. Each setting that can be changed from the command line must
// have a field in the Config struct and a flag registered in RegisterFlags.
// Settings may also be read from a TOML file named by the "config" flag.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"ttinfo.dev/ttinfo/pkg/log"
	"ttinfo.dev/ttinfo/pkg/tt"
)

// Config holds configuration that is not part of a single command's flags.
//
// Fields tagged "flag" are populated by NewFromFlags. Fields tagged "toml"
// may also be set from the configuration file; an explicitly set flag always
// wins over the file.
type Config struct {
	// ConfigFile is the path of an optional TOML configuration file.
	ConfigFile string `flag:"config" toml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// DebugLog is the path to log debug information to, if not empty.
	DebugLog string `flag:"debug-log" toml:"debug_log"`

	// DebugLogFormat is the log format for debug.
	DebugLogFormat string `flag:"debug-log-format" toml:"debug_log_format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// TTBR0 is the lower address range translation table base.
	TTBR0 Root `flag:"ttbr0" toml:"ttbr0"`

	// TTBR1 is the upper address range translation table base.
	TTBR1 Root `flag:"ttbr1" toml:"ttbr1"`

	// Level is the translation level of the TTBR tables.
	Level int `flag:"level" toml:"level"`

	// Invalid selects how invalid entries are shown by default.
	Invalid tt.InvalidMode `toml:"invalid"`

	// Verbose shows descriptor attributes by default.
	Verbose bool `toml:"verbose"`

	// Images are the memory images backing the target's physical memory.
	Images Images `toml:"image"`
}

// Root is an optional translation table base address.
type Root struct {
	Address uint64
	Valid   bool
}

// String implements flag.Value.
func (r *Root) String() string {
	if !r.Valid {
		return ""
	}
	return fmt.Sprintf("%#x", r.Address)
}

// Set implements flag.Value. An empty string clears r.
func (r *Root) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		*r = Root{}
		return nil
	}
	a, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*r = Root{Address: uint64(a), Valid: true}
	return nil
}

// Get implements flag.Getter.
func (r *Root) Get() any {
	return *r
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Root) UnmarshalText(b []byte) error {
	return r.Set(string(b))
}

// Address is a physical or virtual address.
type Address uint64

// ParseAddress parses s using Go integer literal syntax, so "0x4000_0000",
// "0b1000" and "4096" are all accepted.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q: %v", tt.ErrInvalidArgument, s, err)
	}
	return Address(v), nil
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Image is a raw physical memory image loaded at Base.
type Image struct {
	Path string  `toml:"path"`
	Base Address `toml:"base"`
}

// String implements fmt.Stringer.
func (i Image) String() string {
	return fmt.Sprintf("%s@%v", i.Path, i.Base)
}

// ParseImage parses "path@base".
func ParseImage(s string) (Image, error) {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return Image{}, fmt.Errorf("%w: image %q must be path@base", tt.ErrInvalidArgument, s)
	}
	base, err := ParseAddress(s[at+1:])
	if err != nil {
		return Image{}, fmt.Errorf("image %q: %w", s, err)
	}
	return Image{Path: s[:at], Base: base}, nil
}

// Images can be used with image flags that appear multiple times.
type Images []Image

// String implements flag.Value.
func (i *Images) String() string {
	parts := make([]string, 0, len(*i))
	for _, img := range *i {
		parts = append(parts, img.String())
	}
	return strings.Join(parts, ",")
}

// Get implements flag.Getter.
func (i *Images) Get() any {
	return *i
}

// Set implements flag.Value.
func (i *Images) Set(s string) error {
	img, err := ParseImage(s)
	if err != nil {
		return err
	}
	*i = append(*i, img)
	return nil
}

func (c *Config) validate() error {
	if c.Level < 0 || c.Level > tt.MaxLevel {
		return fmt.Errorf("%w: level %d not in [0, %d]", tt.ErrInvalidArgument, c.Level, tt.MaxLevel)
	}
	switch c.DebugLogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format %q, must be 'text' or 'json'", tt.ErrInvalidArgument, c.DebugLogFormat)
	}
	return nil
}

// Roots returns the configured translation table roots, TTBR0 first.
func (c *Config) Roots() []NamedRoot {
	var roots []NamedRoot
	if c.TTBR0.Valid {
		roots = append(roots, NamedRoot{Name: "ttbr0", Address: c.TTBR0.Address})
	}
	if c.TTBR1.Valid {
		roots = append(roots, NamedRoot{Name: "ttbr1", Address: c.TTBR1.Address, Upper: true})
	}
	return roots
}

// NamedRoot is a configured translation table base.
type NamedRoot struct {
	Name    string
	Address uint64

	// Upper is set for tables translating the upper (all ones) VA range.
	Upper bool
}

// Log logs important aspects of the configuration.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		v := obj.Field(i)
		if s, ok := v.Addr().Interface().(fmt.Stringer); ok {
			log.Infof("\t%s: %s", f.Name, s)
			continue
		}
		log.Infof("\t%s: %v", f.Name, v.Interface())
	}
}
