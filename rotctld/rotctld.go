// Package rotctld implements the Hamlib-compatible ASCII line dialect used
// by clients like gpredict. It is a thin pass-through onto rotorctl.Surface:
// no state lives here beyond parsing one line at a time.
package rotctld

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/hb9cv/g5500d/rotorctl"
)

// einval is Hamlib's own convention for "command not understood".
const einval = "RPRT -1\n"

// Server accepts Hamlib rotctld connections and dispatches them to surf.
type Server struct {
	addr string
	surf *rotorctl.Surface
}

// New constructs a Server listening at addr.
func New(addr string, surf *rotorctl.Surface) *Server {
	return &Server{addr: addr, surf: surf}
}

// ListenAndServe opens addr (retrying transient failures with an
// exponential backoff, mirroring comm.RemoteDevice.Open) and serves
// connections until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var ln net.Listener
	op := func() error {
		l, err := net.Listen("tcp", s.addr)
		if err != nil {
			return err
		}
		ln = l
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("rotctld: listen on %s: %w", s.addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("rotctld: listening on %s", s.addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Printf("rotctld: accept: %s", err)
				continue
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply := s.dispatch(line)
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return einval
	}
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case "P", "set_pos":
		return s.handleSetPos(args)
	case "p", "get_pos":
		return s.handleGetPos()
	case "K", "park":
		return rprt(s.surf.Park())
	case "S", "stop":
		return rprt(s.surf.Stop())
	case "\\get_info":
		info := s.surf.GetInfo()
		return fmt.Sprintf("G5500 simulator=%d el_max=%.0f\n", int(info.SimMode), info.ElMax)
	case "\\dump_caps":
		return s.handleDumpCaps()
	case "\\chk_vfo":
		return "0\n"
	default:
		return einval
	}
}

func (s *Server) handleSetPos(args []string) string {
	if len(args) != 2 {
		return einval
	}
	az, err1 := strconv.ParseFloat(args[0], 64)
	el, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return einval
	}
	return rprt(s.surf.SetPosition(az, el))
}

func (s *Server) handleGetPos() string {
	az, el, code := s.surf.GetPosition()
	if code != rotorctl.OK {
		return rprt(code)
	}
	return fmt.Sprintf("%.6f\n%.6f\n", az, el)
}

func (s *Server) handleDumpCaps() string {
	c := s.surf.DumpCaps()
	var b strings.Builder
	fmt.Fprintf(&b, "AzMin: %.0f\n", c.AzMin)
	fmt.Fprintf(&b, "AzMax: %.0f\n", c.AzMax)
	fmt.Fprintf(&b, "ElMin: %.0f\n", c.ElMin)
	fmt.Fprintf(&b, "ElMax: %.0f\n", c.ElMax)
	fmt.Fprintf(&b, "TickMS: %d\n", c.TickMS)
	fmt.Fprintf(&b, "Deadband: %d\n", c.DeadbandCounts)
	fmt.Fprintf(&b, "StallThreshold: %d\n", c.StallThreshold)
	fmt.Fprintf(&b, "Simulator: %d\n", int(c.SimMode))
	fmt.Fprintf(&b, "Calibrated: %t\n", c.Calibrated)
	return b.String()
}

func rprt(code rotorctl.Code) string {
	return fmt.Sprintf("RPRT %d\n", code.RPRT())
}
