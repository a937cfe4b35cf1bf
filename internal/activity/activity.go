package activity

import (
	"fmt"
	"time"
)

// Latitude and longitude bounds, in degrees.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0
)

const startTimeLayout = "2006-01-02T15:04:05"

// Activity is a single recorded physical activity.
//
// ID is zero until the store assigns one on the first successful insert.
// TrackPoints is nil when the track was not loaded or supplied; the store
// always returns a non-nil (possibly empty) slice when the track is requested.
type Activity struct {
	ID          int64
	StartTime   time.Time
	Description string
	Type        Type
	TrackPoints []TrackPoint
}

func NewActivity(startTime time.Time, description string, activityType Type) Activity {
	return Activity{
		StartTime:   startTime,
		Description: description,
		Type:        activityType,
	}
}

// WithTrackPoints returns a copy of the activity carrying the given track.
func (a Activity) WithTrackPoints(trackPoints ...TrackPoint) Activity {
	a.TrackPoints = append(make([]TrackPoint, 0, len(trackPoints)), trackPoints...)
	return a
}

func (a Activity) String() string {
	return fmt.Sprintf(
		"Activity{id=%d, startTime=%s, description='%s', type=%s}",
		a.ID, a.StartTime.Format(startTimeLayout), a.Description, a.Type,
	)
}

// TrackPoint is a geographic position recorded on a given day. It has no
// identity of its own and belongs to exactly one Activity.
type TrackPoint struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// NewTrackPoint drops the time of day from day, keeping only the calendar date.
func NewTrackPoint(day time.Time, lat, lon float64) TrackPoint {
	return TrackPoint{
		Time: Date(day),
		Lat:  lat,
		Lon:  lon,
	}
}

// Validate reports whether the point lies within the latitude and longitude bounds.
// NaN coordinates are rejected as well.
func (tp TrackPoint) Validate() error {
	if !(tp.Lat >= MinLat && tp.Lat <= MaxLat) {
		return fmt.Errorf("latitude %v not in [%v, %v]: %w", tp.Lat, MinLat, MaxLat, ErrInvalidTrackPoint)
	}
	if !(tp.Lon >= MinLon && tp.Lon <= MaxLon) {
		return fmt.Errorf("longitude %v not in [%v, %v]: %w", tp.Lon, MinLon, MaxLon, ErrInvalidTrackPoint)
	}
	return nil
}

// Date truncates t to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
