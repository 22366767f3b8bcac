// Command g5500d is the headless rotator daemon: it owns the GPIO/I2C
// hardware (or a simulated HAL), runs the motion controller, and serves
// both network dialects concurrently.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	yml "github.com/go-yaml/yaml"

	"github.com/hb9cv/g5500d/cal"
	"github.com/hb9cv/g5500d/config"
	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/hal"
	"github.com/hb9cv/g5500d/httpapi"
	"github.com/hb9cv/g5500d/rotctld"
	"github.com/hb9cv/g5500d/rotorctl"
)

// Version is the build version, injected via -ldflags.
var Version = "dev"

// ConfigFileName is the config file looked for in the working directory.
var ConfigFileName = config.DefaultFileName

func root() {
	str := `g5500d drives a Yaesu G-5500 az/el rotator over GPIO relays and an
ADS1015 ADC, and exposes it over two TCP dialects: a Hamlib rotctld-
compatible ASCII line protocol, and a permissive HTTP/JSON dialect with a
plain status page.

Usage:
	g5500d <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `g5500d is configured via a YAML file. For a primer on YAML, see
https://yaml.org/start.html

When no configuration file is present, built-in defaults are used. The
mkconf command writes the current defaults to disk so they can be edited.`
	fmt.Println(str)
}

func mkconf() {
	c := config.Default()
	if err := config.Save(ConfigFileName, c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("g5500d version %v\n", Version)
}

func run() {
	c, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}

	h := buildHAL(c)
	if err := h.Init(); err != nil {
		log.Fatalf("g5500d: hal init: %s", err)
	}
	defer h.Shutdown()

	calPath := c.CalFile
	if calPath == "" {
		calPath, err = cal.DefaultPath()
		if err != nil {
			log.Fatalf("g5500d: resolving calibration path: %s", err)
		}
	}

	ctrl := controller.New(h, calPath)
	if c.Simulator != 0 {
		ctrl.ApplySimMode(hal.SimMode(c.Simulator))
	} else if cc, err := cal.Load(calPath); err == nil {
		ctrl.LoadCalibration(cc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	if c.WatchConfig {
		stop, err := config.Watch(ConfigFileName, func(mode int) {
			ctrl.ApplySimMode(hal.SimMode(mode))
		})
		if err != nil {
			log.Printf("g5500d: config watch disabled: %s", err)
		} else {
			defer stop()
		}
	}

	surf := rotorctl.New(ctrl, calPath)

	rc := rotctld.New(c.Addr, surf)
	api := httpapi.New(surf, ctrl)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() { errCh <- rc.ListenAndServe(ctx) }()
	go func() {
		log.Printf("g5500d: http/direct dialect listening on %s", c.HTTPAddr)
		errCh <- http.ListenAndServe(c.HTTPAddr, api.Router())
	}()

	select {
	case <-sigCh:
		log.Println("g5500d: signal received, stopping")
		surf.Stop()
		cancel()
		time.Sleep(100 * time.Millisecond)
	case err := <-errCh:
		log.Fatalf("g5500d: %s", err)
	}
}

func buildHAL(c config.Config) hal.HAL {
	if c.Simulator != 0 {
		return hal.NewSim(hal.SimMode(c.Simulator), 50)
	}
	return hal.NewReal()
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
