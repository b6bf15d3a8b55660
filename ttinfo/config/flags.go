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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"ttinfo.dev/ttinfo/pkg/log"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML configuration file. Flags set on the command line override values from the file.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs. If it ends with '/', log files are created inside the directory with default names. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("debug-log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr.")

	// Target flags.
	flagSet.Var(&Root{}, "ttbr0", "translation table base for the lower VA range, walked by 'dump' when no address is given.")
	flagSet.Var(&Root{}, "ttbr1", "translation table base for the upper VA range, walked by 'dump' when no address is given.")
	flagSet.Int("level", 0, "translation level of the -ttbr0 and -ttbr1 tables.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags, overlaid on the configuration file when one is given.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x)
	}

	if conf.ConfigFile != "" {
		set := make(map[string]bool)
		flagSet.Visit(func(fl *flag.Flag) {
			set[fl.Name] = true
		})
		if err := conf.LoadFile(conf.ConfigFile, set); err != nil {
			return nil, err
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadFile sets every field defined in the TOML file at path, except fields
// whose flag name is in set. Unknown keys are an error.
func (c *Config) LoadFile(path string, set map[string]bool) error {
	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config file %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	obj := reflect.ValueOf(c).Elem()
	from := reflect.ValueOf(&file).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		key, ok := f.Tag.Lookup("toml")
		if !ok || key == "-" || !md.IsDefined(key) {
			continue
		}
		if name, ok := f.Tag.Lookup("flag"); ok && set[name] {
			log.Debugf("Config file %q: %s overridden by flag -%s", path, key, name)
			continue
		}
		obj.Field(i).Set(from.Field(i))
	}
	return nil
}
