package pace

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	metersPerKm   = 1000.0
	metersPerMile = 1609.344
)

type Result struct {
	DistanceMeters float64      `json:"distance_meters"`
	Time           string       `json:"time"`
	PacePerKm      string       `json:"pace_per_km"`
	PacePerMile    string       `json:"pace_per_mile"`
	SpeedKmh       float64      `json:"speed_kmh"`
	Projections    []Projection `json:"projections"`
}

// Projection is a predicted finish time for a standard race distance.
type Projection struct {
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distance_meters"`
	Time           string  `json:"time"`
}

var raceDistances = []struct {
	name   string
	meters float64
}{
	{"5K", 5000},
	{"10K", 10000},
	{"Half marathon", 21097.5},
	{"Marathon", 42195},
}

// ParseDuration parses "h:mm:ss" or "mm:ss" into a duration.
func ParseDuration(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected mm:ss or h:mm:ss", s)
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time component %q", part)
		}
		total = total*60 + n
	}

	return time.Duration(total) * time.Second, nil
}

// FormatDuration renders a duration as mm:ss below one hour, h:mm:ss above.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// roundSeconds converts fractional seconds to a duration on the nearest
// whole second, so display values never understate by truncation.
func roundSeconds(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds)) * time.Second
}

// Calculate derives pace, speed and projected race times from one run.
// Projections use Riegel's formula (exponent 1.06).
func Calculate(distanceMeters float64, elapsed time.Duration) (Result, error) {
	if distanceMeters <= 0 {
		return Result{}, fmt.Errorf("distance must be positive")
	}
	if elapsed <= 0 {
		return Result{}, fmt.Errorf("time must be positive")
	}

	secPerMeter := elapsed.Seconds() / distanceMeters

	result := Result{
		DistanceMeters: distanceMeters,
		Time:           FormatDuration(elapsed),
		PacePerKm:      FormatDuration(roundSeconds(secPerMeter * metersPerKm)),
		PacePerMile:    FormatDuration(roundSeconds(secPerMeter * metersPerMile)),
		SpeedKmh:       distanceMeters / metersPerKm / (elapsed.Hours()),
	}

	for _, race := range raceDistances {
		predicted := elapsed.Seconds() * math.Pow(race.meters/distanceMeters, 1.06)
		result.Projections = append(result.Projections, Projection{
			Name:           race.name,
			DistanceMeters: race.meters,
			Time:           FormatDuration(roundSeconds(predicted)),
		})
	}

	return result, nil
}
