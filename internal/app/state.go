package app

import "fmt"

// Route names a screen.
type Route string

const (
	RouteClients Route = "clients"
	RouteAdd     Route = "add"
	RouteEdit    Route = "edit"
	RouteStyles  Route = "styles"
	RouteBackup  Route = "backup"
)

// ParseRoute validates a route name. An empty name is the clients list.
func ParseRoute(s string) (Route, error) {
	switch r := Route(s); r {
	case "":
		return RouteClients, nil
	case RouteClients, RouteAdd, RouteEdit, RouteStyles, RouteBackup:
		return r, nil
	}
	return "", fmt.Errorf("unknown route %q", s)
}

// State is the navigation state. Actions return the next State rather than
// changing anything global.
type State struct {
	Route    Route  `json:"route"`
	ClientID string `json:"clientId,omitempty"`
	StyleID  string `json:"styleId,omitempty"`
}

// Home is the initial state.
func Home() State { return State{Route: RouteClients} }

// Edit returns the edit state for a client, optionally with a selected style.
func Edit(clientID, styleID string) State {
	return State{Route: RouteEdit, ClientID: clientID, StyleID: styleID}
}
