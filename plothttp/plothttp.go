// Package plothttp exposes one plotter's motion API over HTTP, so plots
// can be driven from any language with a decent HTTP client.  One wrapper
// serves one plotter; a server with several units mounts one wrapper per
// unit on its own submux.
package plothttp

import (
	"encoding/json"
	"go/types"
	"net/http"

	"goji.io/pat"

	"github.com/plotterlab/axidraw/geom"
	"github.com/plotterlab/axidraw/motion"
	"github.com/plotterlab/axidraw/server"
)

// Pos is a position for json {'x': 1.0, 'y': 2.0}, in the plotter's
// configured display units.
type Pos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Path is a polyline for json {'vertices': [[x,y], ...]}.
type Path struct {
	Vertices [][2]float64 `json:"vertices"`
}

// Status mirrors the per-unit status record.
type Status struct {
	Port      string `json:"port"`
	Stopped   int    `json:"stopped"`
	FWVersion string `json:"fwVersion"`
}

// Limits is the travel envelope in display units.
type Limits struct {
	Min Pos `json:"min"`
	Max Pos `json:"max"`
}

// HTTPPlotter wraps a Plotter with an HTTP interface.
type HTTPPlotter struct {
	p *motion.Plotter

	rt server.RouteTable
}

// NewHTTPPlotter wraps p, populating the route table.
func NewHTTPPlotter(p *motion.Plotter) *HTTPPlotter {
	w := &HTTPPlotter{p: p}
	rt := server.RouteTable{
		pat.Get("/pen"):          w.GetPen,
		pat.Post("/pen"):         w.SetPen,
		pat.Get("/pen/physical"): w.GetPhysicalPen,
		pat.Get("/pos"):          w.GetPos,
		pat.Get("/pos/physical"): w.GetPhysicalPos,
		pat.Post("/moveto"):      w.moveHandler(p.MoveTo),
		pat.Post("/lineto"):      w.moveHandler(p.LineTo),
		pat.Post("/moverel"):     w.moveHandler(p.MoveRel),
		pat.Post("/linerel"):     w.moveHandler(p.LineRel),
		pat.Post("/path"):        w.DrawPath,
		pat.Post("/home"):        w.Home,
		pat.Get("/status"):       w.GetStatus,
		pat.Get("/state"):        w.GetState,
		pat.Post("/connect"):     w.Connect,
		pat.Post("/disconnect"):  w.Disconnect,
		pat.Get("/limits"):       w.GetLimits,
	}
	w.rt = rt
	return w
}

// RT satisfies server.HTTPer.
func (h *HTTPPlotter) RT() server.RouteTable {
	return h.rt
}

// GetPen returns the logical pen state, true=up, as json {'bool': true}.
func (h *HTTPPlotter) GetPen(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: h.p.PenIsUp()}
	hp.EncodeAndRespond(w, r)
}

// SetPen accepts json {'bool': true} and raises (true) or lowers the pen.
func (h *HTTPPlotter) SetPen(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		err = h.p.PenUp()
	} else {
		err = h.p.PenDown()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetPhysicalPen returns the hardware pen state as json {'bool': true}.
func (h *HTTPPlotter) GetPhysicalPen(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: h.p.PhysicalPenIsUp()}
	hp.EncodeAndRespond(w, r)
}

func respondPos(w http.ResponseWriter, x, y float64) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(Pos{X: x, Y: y})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetPos returns the turtle position in display units.
func (h *HTTPPlotter) GetPos(w http.ResponseWriter, r *http.Request) {
	x, y := h.p.Position()
	respondPos(w, x, y)
}

// GetPhysicalPos returns the last hardware-commanded position in display
// units.
func (h *HTTPPlotter) GetPhysicalPos(w http.ResponseWriter, r *http.Request) {
	x, y := h.p.PhysicalPosition()
	respondPos(w, x, y)
}

// moveHandler adapts one of the four move primitives to an HTTP handler
// accepting json {'x': 1.0, 'y': 2.0}.
func (h *HTTPPlotter) moveHandler(move func(x, y float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := Pos{}
		err := json.NewDecoder(r.Body).Decode(&p)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := move(p.X, p.Y); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// DrawPath accepts json {'vertices': [[x,y], ...]} and plots the polyline.
func (h *HTTPPlotter) DrawPath(w http.ResponseWriter, r *http.Request) {
	body := Path{}
	err := json.NewDecoder(r.Body).Decode(&body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	verts := make([]geom.Point, len(body.Vertices))
	for i, v := range body.Vertices {
		verts[i] = geom.Point{X: v[0], Y: v[1]}
	}
	if err := h.p.DrawPath(verts); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Home raises the pen and returns to the origin.
func (h *HTTPPlotter) Home(w http.ResponseWriter, r *http.Request) {
	if err := h.p.WalkHome(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetStatus returns the per-unit status record.
func (h *HTTPPlotter) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.p.Status()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(Status{
		Port:      st.Port,
		Stopped:   int(st.Stopped),
		FWVersion: st.FWVersion,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetState returns the session state as json {'str': "connected"}.
func (h *HTTPPlotter) GetState(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.p.CurrentState().String()}
	hp.EncodeAndRespond(w, r)
}

// Connect accepts json {'str': "/dev/ttyACM0"} and opens the unit.
func (h *HTTPPlotter) Connect(w http.ResponseWriter, r *http.Request) {
	s := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.p.Connect(s.Str); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.p.CurrentState() != motion.Connected {
		http.Error(w, "connect failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Disconnect raises the pen and closes the unit.
func (h *HTTPPlotter) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.p.Disconnect(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetLimits returns the travel envelope, converted to display units.
func (h *HTTPPlotter) GetLimits(w http.ResponseWriter, r *http.Request) {
	b := h.p.Bounds()
	scale := h.p.Units().PerInch()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(Limits{
		Min: Pos{X: b.Min.X * scale, Y: b.Min.Y * scale},
		Max: Pos{X: b.Max.X * scale, Y: b.Max.Y * scale},
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
