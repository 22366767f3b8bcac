// Package server contains misc HTTP server utilities used by the rotator
// daemon's HTTP/direct dialect.
package server

import (
	"encoding/json"
	"net/http"
)

// RouteTable maps URL endpoints to handlers for a single goji sub-mux.
type RouteTable map[string]http.HandlerFunc

// ListEndpoints lists the endpoints in a RouteTable (the keys)
func (rt RouteTable) ListEndpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k)
	}
	return routes
}

// EndpointsHTTP replies with the endpoint list as JSON.
func (rt RouteTable) EndpointsHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rt.ListEndpoints()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
