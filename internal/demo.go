package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/activitytracker/internal/activity"

	log "github.com/sirupsen/logrus"
)

// ActivityStore is the part of activity.Store the demo run needs.
type ActivityStore interface {
	Save(ctx context.Context, a activity.Activity) error
	SaveWithTrackPoints(ctx context.Context, a activity.Activity) (activity.Activity, error)
	FindByID(ctx context.Context, id int64) (activity.Activity, error)
	FindByIDWithTrackPoints(ctx context.Context, id int64) (activity.Activity, error)
	ListAll(ctx context.Context) ([]activity.Activity, error)
}

func SampleActivities() []activity.Activity {
	return []activity.Activity{
		activity.NewActivity(time.Date(2022, 1, 12, 13, 50, 0, 0, time.UTC), "Running in the wood", activity.Running),
		activity.NewActivity(time.Date(2022, 2, 15, 10, 40, 0, 0, time.UTC), "Basketball in the garden", activity.Basketball),
		activity.NewActivity(time.Date(2022, 2, 20, 6, 10, 0, 0, time.UTC), "Biking in the streets", activity.Biking),
	}
}

func SampleTrackedActivity() activity.Activity {
	day := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	return activity.NewActivity(time.Date(2022, 3, 1, 7, 30, 0, 0, time.UTC), "Morning run by the lake", activity.Running).
		WithTrackPoints(
			activity.NewTrackPoint(day, 47.4979, 19.0402),
			activity.NewTrackPoint(day, 47.4985, 19.0411),
			activity.NewTrackPoint(day, 47.4993, 19.0425),
		)
}

// RunDemo saves the sample activities, lists them and reads each one back by id.
// It returns the listed activities.
func RunDemo(ctx context.Context, store ActivityStore) ([]activity.Activity, error) {
	for _, a := range SampleActivities() {
		if err := store.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("save sample activity: %w", err)
		}
	}

	tracked, err := store.SaveWithTrackPoints(ctx, SampleTrackedActivity())
	if err != nil {
		return nil, fmt.Errorf("save tracked activity: %w", err)
	}
	log.Infof("saved tracked activity [%d] with %d track points", tracked.ID, len(tracked.TrackPoints))

	activities, err := store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	log.Infof("listed %d activities: %v", len(activities), activities)

	for _, listed := range activities {
		found, err := store.FindByID(ctx, listed.ID)
		if err != nil {
			return nil, fmt.Errorf("find activity %d: %w", listed.ID, err)
		}
		log.Infoln(found)
	}

	withTrack, err := store.FindByIDWithTrackPoints(ctx, tracked.ID)
	if err != nil {
		return nil, fmt.Errorf("find tracked activity %d: %w", tracked.ID, err)
	}
	for i, tp := range withTrack.TrackPoints {
		log.Infof(" - track point #%d: %s [%f, %f]", i, tp.Time.Format(time.DateOnly), tp.Lat, tp.Lon)
	}

	return activities, nil
}
