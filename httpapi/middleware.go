package httpapi

import (
	"net/http"

	"github.com/hb9cv/g5500d/controller"
)

// BusyGate blocks writes while a calibration sweep is in progress,
// adapted from server/middleware/locker's non-blocking bool-gate idiom:
// "instrument globally locked" becomes "writes blocked while calibrating".
// /stop always passes through so an operator can abort a sweep.
type BusyGate struct {
	ctrl *controller.Controller
}

// Check is the chi-compatible middleware function.
func (g *BusyGate) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.URL.Path != "/stop" && g.ctrl.State().IsCalibrating() {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}
