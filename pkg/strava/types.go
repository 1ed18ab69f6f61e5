package strava

import "time"

// TokenResponse is returned by the token endpoint for both the
// authorization-code and refresh-token grants. ExpiresAt is unix seconds.
// The athlete block is only present on the initial code exchange.
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	Athlete      *Athlete `json:"athlete,omitempty"`
}

type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"`
}

type SummaryActivity struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Distance   float64     `json:"distance"`
	MovingTime int         `json:"moving_time"`
	SportType  string      `json:"sport_type"`
	Map        ActivityMap `json:"map"`
	StartDate  time.Time   `json:"start_date"`
}

type ActivityMap struct {
	SummaryPolyline string `json:"summary_polyline"`
}
