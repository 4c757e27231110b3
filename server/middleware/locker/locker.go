// Package locker provides an HTTP middleware which serializes access to a
// plotter unit and allows a client to lock it outright, returning 423
// (locked) to everyone else.  A plotter session is single-threaded by
// design; the middleware makes that safe under concurrent HTTP clients.
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"goji.io/pat"

	"github.com/plotterlab/axidraw/server"
)

// Inject adds a lock route to a server.HTTPer which is used to manipulate
// the locker
func Inject(other server.HTTPer, l *Locker) {
	rt := other.RT()
	rt[pat.Get("/lock")] = l.HTTPGet
	rt[pat.Post("/lock")] = l.HTTPSet
}

// Locker guards one unit.  Protected requests run one at a time; while the
// locker is locked they are bounced instead of queued.
type Locker struct {
	// serial admits one protected request at a time
	serial sync.Mutex

	// state guards isLocked, so lock queries never wait on a plot
	state    sync.Mutex
	isLocked bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with the lock
// and read-only status routes.
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock", "status", "state"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.state.Lock()
	l.isLocked = true
	l.state.Unlock()
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.state.Lock()
	l.isLocked = false
	l.state.Unlock()
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.state.Lock()
	defer l.state.Unlock()
	return l.isLocked
}

func (l *Locker) protected(url string) bool {
	for _, str := range l.DoNotProtect {
		if strings.Contains(url, str) {
			return false
		}
	}
	return true
}

// Check is an HTTP middleware.  Unprotected paths pass straight through.
// Protected paths return http.StatusLocked while the locker is locked, and
// otherwise run serialized, one request at a time.
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.protected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if l.Locked() {
			w.WriteHeader(http.StatusLocked)
			return
		}
		l.serial.Lock()
		defer l.serial.Unlock()
		next.ServeHTTP(w, r)
	})
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	b := l.Locked()
	hp := server.HumanPayload{T: types.Bool, Bool: b}
	hp.EncodeAndRespond(w, r)
}
