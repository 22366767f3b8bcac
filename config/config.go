// Package config loads the daemon's configuration: defaults layered with an
// optional YAML file, exactly the shape cmd/multiserver and cmd/andorhttp2
// use in the teacher corpus, plus an fsnotify watch for the one setting this
// daemon can safely hot-apply without a restart.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "github.com/go-yaml/yaml"
)

// DefaultFileName is the config file name looked for in the working
// directory.
const DefaultFileName = "g5500d.yml"

// Config holds every daemon-wide setting. Simulator is the only field
// eligible for hot-reload (see Watch).
type Config struct {
	// Addr is the rotctld dialect's listen address.
	Addr string `koanf:"Addr" yaml:"Addr"`

	// HTTPAddr is the http/direct dialect + status page's listen address.
	HTTPAddr string `koanf:"HTTPAddr" yaml:"HTTPAddr"`

	// Simulator selects a simulated HAL mode: 0=off 1=az-only 2=el-90
	// 3=el-180. Ignored (real hardware used) unless nonzero... actually 0
	// itself means "off", i.e. real hardware.
	Simulator int `koanf:"Simulator" yaml:"Simulator"`

	// CalFile overrides the calibration file path. Empty means
	// $HOME/.hamlib_g5500_cal.txt.
	CalFile string `koanf:"CalFile" yaml:"CalFile"`

	// TickMS records the controller's tick period in milliseconds. The
	// daemon does not read it: the controller always ticks at the fixed
	// controller.Tick (200 ms), whatever this field holds.
	TickMS int `koanf:"TickMS" yaml:"TickMS"`

	// WatchConfig enables the fsnotify hot-reload of Simulator.
	WatchConfig bool `koanf:"WatchConfig" yaml:"WatchConfig"`
}

// Default returns the built-in defaults, matching §6.1's documented shape.
func Default() Config {
	return Config{
		Addr:        ":4533",
		HTTPAddr:    ":8080",
		Simulator:   0,
		CalFile:     "",
		TickMS:      200,
		WatchConfig: false,
	}
}

// Load layers Default() with path's YAML contents, if the file exists. A
// missing file is not an error — defaults apply, exactly cmd/multiserver's
// setupconfig behavior.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") {
			return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return c, nil
}

// Save writes c to path as YAML, used by the mkconf/conf subcommands.
func Save(path string, c Config) error {
	return writeYAML(path, c)
}

// Watch starts an fsnotify watch on path and invokes onSimChange whenever a
// reload observes a changed Simulator value. It returns a stop function.
// Only enabled when Config.WatchConfig is true.
func Watch(path string, onSimChange func(int)) (stop func() error, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	last, err := Load(path)
	if err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c, err := Load(path)
				if err != nil {
					log.Printf("config: reload after %s failed: %s", ev, err)
					continue
				}
				if c.Simulator != last.Simulator {
					log.Printf("config: simulator mode changed %d -> %d", last.Simulator, c.Simulator)
					onSimChange(c.Simulator)
				}
				last = c
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("config: watcher error: %s", err)
			}
		}
	}()

	return w.Close, nil
}

func writeYAML(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: creating %s: %w", path, err)
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(c)
}
