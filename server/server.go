// Package server contains the route table and payload glue shared by the
// HTTP wrappers.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"

	"goji.io"
)

// HTTPer is an object which exposes its functionality as a route table.
type HTTPer interface {
	RT() RouteTable
}

// RouteTable maps URL patterns to the handlers serving them.
type RouteTable map[goji.Pattern]http.HandlerFunc

// Endpoints lists the patterns in the table, sorted.
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for p := range rt {
		routes = append(routes, fmt.Sprint(p))
	}
	sort.Strings(routes)
	return routes
}

// Bind attaches every route in the table to mux.
func (rt RouteTable) Bind(mux *goji.Mux) {
	for p, h := range rt {
		mux.HandleFunc(p, h)
	}
}

// FloatT is a wrapper around a float for json {'f64': 3.14}.
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a wrapper around an int for json {'int': 42}.
type IntT struct {
	Int int `json:"int"`
}

// StrT is a wrapper around a string for json {'str': "foo"}.
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a wrapper around a bool for json {'bool': true}.
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct containing the basic types an HTTP wrapper
// responds with, and a type tag saying which field is live.
type HumanPayload struct {
	// T holds the type of the data
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload to w as the matching json wrapper.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	switch hp.T {
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		http.Error(w, fmt.Sprintf("unable to encode type %v", hp.T), http.StatusInternalServerError)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
