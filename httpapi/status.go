package httpapi

import (
	"fmt"
	"net/http"

	"goji.io"
	"goji.io/pat"

	"github.com/hb9cv/g5500d/rotorctl"
	"github.com/hb9cv/g5500d/sensor"
)

// statusHTML is the plain status page: no JS, refreshes itself via a meta
// tag. Grounded on envsrv/cfg.go's goji.NewMux/pat sub-mux pattern, used
// here instead of chi so the status page stays servable even if a future
// dialect swap drops chi from the rest of this package.
func statusMux(surf *rotorctl.Surface) *goji.Mux {
	m := goji.NewMux()
	m.HandleFunc(pat.Get("/status.html"), func(w http.ResponseWriter, r *http.Request) {
		writeStatusPage(w, surf)
	})
	return m
}

func writeStatusPage(w http.ResponseWriter, surf *rotorctl.Surface) {
	az, el, code := surf.GetPosition()
	state, status, targetAz, targetEl := surf.Diagnostics()
	caps := surf.DumpCaps()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta http-equiv="refresh" content="2">
<title>g5500d status</title>
</head>
<body>
<h1>g5500d</h1>
<table border="1" cellpadding="4">
<tr><td>state</td><td>%s</td></tr>
<tr><td>status flags</td><td>%s</td></tr>
<tr><td>%s</td><td>%.1f&deg;</td></tr>
<tr><td>%s</td><td>%.1f&deg;</td></tr>
<tr><td>target (counts)</td><td>az=%d el=%d</td></tr>
<tr><td>last error</td><td>%s</td></tr>
<tr><td>calibrated</td><td>%t</td></tr>
<tr><td>simulator mode</td><td>%d</td></tr>
</table>
</body>
</html>
`, state, status,
		sensor.Registry[sensor.ChannelAz].Name, az,
		sensor.Registry[sensor.ChannelEl].Name, el,
		targetAz, targetEl, code, caps.Calibrated, int(caps.SimMode))
}
