package domain

type Connectivity string

const (
	ConnectivityConnected Connectivity = "connected"
	ConnectivityDegraded  Connectivity = "degraded"
	ConnectivityError     Connectivity = "error"
)

// Indicator is the badge shown to the user.
type Indicator struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}
