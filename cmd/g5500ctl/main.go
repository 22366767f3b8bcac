// Command g5500ctl is a small admin CLI for a running g5500d: it talks to
// the daemon's HTTP/direct dialect to report status, command motion, and
// watch a calibration sweep to completion.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"
)

var baseURL = envOr("G5500CTL_ADDR", "http://127.0.0.1:8080")

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func root() {
	str := `g5500ctl talks to a running g5500d over its HTTP/direct dialect.

Usage:
	g5500ctl <command> [args]

Commands:
	status           show current position, state, and status flags
	caps             show mount bounds and operational limits
	goto AZ EL       command a new position, in degrees
	park             drive to (0, 0)
	stop             halt all motion immediately
	cal              command (0, 0), which starts a calibration sweep when the
	                 daemon is uncalibrated, and wait until it no longer
	                 reports CALIBRATING
	simmode N        select simulator mode (0=off 1=az-only 2=el-90 3=el-180)

Set G5500CTL_ADDR to point at a non-default daemon (default http://127.0.0.1:8080).`
	fmt.Println(str)
}

type codeReply struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type positionReply struct {
	Az   float64 `json:"az"`
	El   float64 `json:"el"`
	Code int     `json:"code"`
	Name string  `json:"name"`
}

type capsReply struct {
	AzMin          float64 `json:"az_min"`
	AzMax          float64 `json:"az_max"`
	ElMin          float64 `json:"el_min"`
	ElMax          float64 `json:"el_max"`
	TickMS         int     `json:"tick_ms"`
	DeadbandCounts int     `json:"deadband_counts"`
	StallThreshold int     `json:"stall_threshold"`
	SimMode        int     `json:"sim_mode"`
	Calibrated     bool    `json:"calibrated"`
	CalAzMin       uint16  `json:"cal_az_min"`
	CalAzMax       uint16  `json:"cal_az_max"`
	CalElMin       uint16  `json:"cal_el_min"`
	CalElMax       uint16  `json:"cal_el_max"`
}

func getJSON(path string, v interface{}) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func postJSON(path string, body, v interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func cmdStatus() {
	var pos positionReply
	if err := getJSON("/position", &pos); err != nil {
		log.Fatal(err)
	}
	if pos.Code != 0 {
		color.Red("error: %s", pos.Name)
		return
	}
	color.Green("az=%.1f el=%.1f", pos.Az, pos.El)
}

func cmdCaps() {
	var c capsReply
	if err := getJSON("/caps", &c); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("az: [%.0f, %.0f]  el: [%.0f, %.0f]\n", c.AzMin, c.AzMax, c.ElMin, c.ElMax)
	fmt.Printf("tick: %dms  deadband: %d counts  stall threshold: %d reads\n", c.TickMS, c.DeadbandCounts, c.StallThreshold)
	if c.Calibrated {
		color.Green("calibrated: az=[%d,%d] el=[%d,%d]", c.CalAzMin, c.CalAzMax, c.CalElMin, c.CalElMax)
	} else {
		color.Yellow("not calibrated")
	}
	fmt.Printf("simulator mode: %d\n", c.SimMode)
}

func cmdGoto(args []string) {
	if len(args) != 2 {
		log.Fatal("usage: g5500ctl goto AZ EL")
	}
	az, err1 := strconv.ParseFloat(args[0], 64)
	el, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		log.Fatal("AZ and EL must be numbers")
	}
	var reply codeReply
	if err := postJSON("/position", map[string]float64{"az": az, "el": el}, &reply); err != nil {
		log.Fatal(err)
	}
	reportCode(reply)
}

func cmdPark() {
	var reply codeReply
	if err := postJSON("/park", struct{}{}, &reply); err != nil {
		log.Fatal(err)
	}
	reportCode(reply)
}

func cmdStop() {
	var reply codeReply
	if err := postJSON("/stop", struct{}{}, &reply); err != nil {
		log.Fatal(err)
	}
	reportCode(reply)
}

func cmdSimMode(args []string) {
	if len(args) != 1 {
		log.Fatal("usage: g5500ctl simmode N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatal("N must be an integer")
	}
	var reply codeReply
	if err := postJSON("/simmode", map[string]int{"mode": n}, &reply); err != nil {
		log.Fatal(err)
	}
	reportCode(reply)
}

// cmdCal triggers a calibration sweep (by commanding a position, which
// kicks one off if uncalibrated) and polls /status.html-equivalent state
// via /position's CALIBRATING code until the sweep completes.
func cmdCal() {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " calibrating",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := spinner.Start(); err != nil {
		log.Fatal(err)
	}

	var reply codeReply
	if err := postJSON("/position", map[string]float64{"az": 0, "el": 0}, &reply); err != nil {
		spinner.StopFail()
		log.Fatal(err)
	}

	for {
		var pos positionReply
		if err := getJSON("/position", &pos); err != nil {
			spinner.StopFail()
			log.Fatal(err)
		}
		if pos.Code != 2 { // not CALIBRATING any more
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	spinner.Message("done")
	spinner.Stop()
}

func reportCode(reply codeReply) {
	if reply.Code == 0 {
		color.Green("OK")
		return
	}
	color.Red("error: %s", reply.Name)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	switch args[1] {
	case "status":
		cmdStatus()
	case "caps":
		cmdCaps()
	case "goto":
		cmdGoto(args[2:])
	case "park":
		cmdPark()
	case "stop":
		cmdStop()
	case "cal":
		cmdCal()
	case "simmode":
		cmdSimMode(args[2:])
	default:
		root()
	}
}
