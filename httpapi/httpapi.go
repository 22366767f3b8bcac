// Package httpapi implements the permissive HTTP/direct dialect: JSON
// routes over rotorctl.Surface, plus a plain status page. Like rotctld,
// this is a thin pass-through — no dialect-specific state lives here beyond
// request parsing.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/hb9cv/g5500d/controller"
	"github.com/hb9cv/g5500d/rotorctl"
	"github.com/hb9cv/g5500d/server"
)

// API wires a rotorctl.Surface to an HTTP router.
type API struct {
	surf *rotorctl.Surface
	ctrl *controller.Controller
}

// New constructs an API. ctrl is held only to drive the busy gate
// middleware; all commands and the status page still go through surf.
func New(surf *rotorctl.Surface, ctrl *controller.Controller) *API {
	return &API{surf: surf, ctrl: ctrl}
}

// Router builds the chi mux for this dialect.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	gate := &BusyGate{ctrl: a.ctrl}
	r.Use(gate.Check)

	r.Get("/position", a.handleGetPosition)
	r.Post("/position", a.handleSetPosition)
	r.Post("/move/{dir}", a.handleMove)
	r.Post("/park", a.handlePark)
	r.Post("/stop", a.handleStop)
	r.Get("/info", a.handleGetInfo)
	r.Get("/caps", a.handleGetCaps)
	r.Post("/simmode", a.handleSetSimMode)
	r.Get("/endpoints", endpoints.EndpointsHTTP)

	r.Mount("/", statusMux(a.surf))
	return r
}

// endpoints lists this dialect's routes for the /endpoints introspection
// route; it is not bound to a live handler, only named.
var endpoints = server.RouteTable{
	"/position":    nil,
	"/move/{dir}":  nil,
	"/park":        nil,
	"/stop":        nil,
	"/info":        nil,
	"/caps":        nil,
	"/simmode":     nil,
	"/status.html": nil,
}

type positionT struct {
	Az float64 `json:"az"`
	El float64 `json:"el"`
}

type positionReplyT struct {
	Az   float64 `json:"az"`
	El   float64 `json:"el"`
	Code int     `json:"code"`
	Name string  `json:"name"`
}

type codeReplyT struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type simModeT struct {
	Mode int `json:"mode"`
}

type infoT struct {
	AzMin   float64 `json:"az_min"`
	AzMax   float64 `json:"az_max"`
	ElMin   float64 `json:"el_min"`
	ElMax   float64 `json:"el_max"`
	SimMode int     `json:"sim_mode"`
}

type capsT struct {
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

func (a *API) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	az, el, code := a.surf.GetPosition()
	writeJSON(w, positionReplyT{Az: az, El: el, Code: int(code), Name: code.String()})
}

func (a *API) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var p positionT
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := a.surf.SetPosition(p.Az, p.El)
	writeJSON(w, codeReplyT{Code: int(code), Name: code.String()})
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	dir, ok := parseDirection(chi.URLParam(r, "dir"))
	if !ok {
		writeJSON(w, codeReplyT{Code: int(rotorctl.BadArgs), Name: rotorctl.BadArgs.String()})
		return
	}
	code := a.surf.Move(dir)
	writeJSON(w, codeReplyT{Code: int(code), Name: code.String()})
}

func (a *API) handlePark(w http.ResponseWriter, r *http.Request) {
	code := a.surf.Park()
	writeJSON(w, codeReplyT{Code: int(code), Name: code.String()})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	code := a.surf.Stop()
	writeJSON(w, codeReplyT{Code: int(code), Name: code.String()})
}

func (a *API) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	info := a.surf.GetInfo()
	writeJSON(w, infoT{AzMin: info.AzMin, AzMax: info.AzMax, ElMin: info.ElMin, ElMax: info.ElMax, SimMode: int(info.SimMode)})
}

func (a *API) handleGetCaps(w http.ResponseWriter, r *http.Request) {
	c := a.surf.DumpCaps()
	writeJSON(w, capsT{
		AzMin: c.AzMin, AzMax: c.AzMax,
		ElMin: c.ElMin, ElMax: c.ElMax,
		TickMS: c.TickMS, DeadbandCounts: c.DeadbandCounts, StallThreshold: c.StallThreshold,
		SimMode: int(c.SimMode), Calibrated: c.Calibrated,
		CalAzMin: c.CalAzMin, CalAzMax: c.CalAzMax,
		CalElMin: c.CalElMin, CalElMax: c.CalElMax,
	})
}

func (a *API) handleSetSimMode(w http.ResponseWriter, r *http.Request) {
	var m simModeT
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := a.surf.SetSimMode(m.Mode)
	writeJSON(w, codeReplyT{Code: int(code), Name: code.String()})
}

func parseDirection(s string) (rotorctl.Direction, bool) {
	switch s {
	case "left":
		return rotorctl.Left, true
	case "right":
		return rotorctl.Right, true
	case "up":
		return rotorctl.Up, true
	case "down":
		return rotorctl.Down, true
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
