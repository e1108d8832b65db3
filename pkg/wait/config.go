package wait

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
)

const component = "wait"

// Fixed-duration bounds per unit.
type unitRange struct {
	min, max int
	d        time.Duration
}

var unitRanges = map[string]unitRange{
	"minutes": {1, 59, time.Minute},
	"hours":   {1, 23, time.Hour},
	"days":    {1, 30, 24 * time.Hour},
	"weeks":   {1, 12, 7 * 24 * time.Hour},
}

const (
	maxUntilDateHorizon = 365 * 24 * time.Hour
	minTimeoutHours     = 1
	maxTimeoutHours     = 2160 // 90 days
)

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// fixedDuration parses duration/unit config into the wait duration.
func fixedDuration(config map[string]any) (time.Duration, error) {
	rawDuration, ok := config["duration"].(float64)
	if !ok {
		return 0, journeyerr.NewConfigurationError(component, "duration",
			errors.New("missing required field 'duration'"))
	}

	unit, ok := config["unit"].(string)
	if !ok {
		return 0, journeyerr.NewConfigurationError(component, "unit",
			errors.New("missing required field 'unit'"))
	}

	bounds, ok := unitRanges[unit]
	if !ok {
		return 0, journeyerr.NewConfigurationError(component, "unit",
			fmt.Errorf("unknown unit %q", unit))
	}

	duration := int(rawDuration)
	if duration < bounds.min || duration > bounds.max {
		return 0, journeyerr.NewConfigurationError(component, "duration",
			fmt.Errorf("duration for unit %q must be between %d and %d", unit, bounds.min, bounds.max))
	}

	return time.Duration(duration) * bounds.d, nil
}

// untilDate parses the absolute resume date, which must be in the future and
// within one year.
func untilDate(config map[string]any, now time.Time) (time.Time, error) {
	raw, ok := config["date"].(string)
	if !ok || raw == "" {
		return time.Time{}, journeyerr.NewConfigurationError(component, "date",
			errors.New("missing required field 'date'"))
	}

	date, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, journeyerr.NewConfigurationError(component, "date", err)
	}

	if !date.After(now) {
		return time.Time{}, journeyerr.NewConfigurationError(component, "date",
			errors.New("date must be in the future"))
	}

	if date.Sub(now) > maxUntilDateHorizon {
		return time.Time{}, journeyerr.NewConfigurationError(component, "date",
			errors.New("date must be within one year"))
	}

	return date.UTC(), nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// untilTime parses an HH:MM time of day plus timezone and an optional
// days-of-week restriction, and returns the next occurrence not before now.
// Day stepping uses calendar days in the location, so the wall-clock time
// holds across DST changes.
func untilTime(config map[string]any, now time.Time) (time.Time, error) {
	raw, ok := config["time"].(string)
	if !ok || !timeOfDayPattern.MatchString(raw) {
		return time.Time{}, journeyerr.NewConfigurationError(component, "time",
			errors.New("field 'time' must be HH:MM in 24-hour format"))
	}

	timezone, _ := config["timezone"].(string)
	if timezone == "" {
		timezone = "UTC"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, journeyerr.NewConfigurationError(component, "timezone", err)
	}

	var hour, minute int

	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, journeyerr.NewConfigurationError(component, "time", err)
	}

	allowedDays, err := untilTimeDays(config)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(location)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, location)

	if next.Before(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, location)
	}

	for allowedDays != nil && !allowedDays[next.Weekday()] {
		next = time.Date(next.Year(), next.Month(), next.Day()+1, hour, minute, 0, 0, location)
	}

	return next.UTC(), nil
}

// untilTimeDays parses the optional days-of-week restriction. A missing or
// empty list means any day.
func untilTimeDays(config map[string]any) (map[time.Weekday]bool, error) {
	rawDays, ok := config["days"].([]any)
	if !ok || len(rawDays) == 0 {
		return nil, nil
	}

	allowed := make(map[time.Weekday]bool, len(rawDays))

	for _, raw := range rawDays {
		name, _ := raw.(string)

		day, okDay := weekdays[strings.ToLower(name)]
		if !okDay {
			return nil, journeyerr.NewConfigurationError(component, "days",
				fmt.Errorf("unknown weekday %q", name))
		}

		allowed[day] = true
	}

	return allowed, nil
}

// eventWait holds the parsed config of an event wait.
type eventWait struct {
	eventType     string
	timeout       time.Duration
	timeoutAction models.TimeoutAction
	filters       *models.TriggerFilters
}

func parseEventWait(config map[string]any) (*eventWait, error) {
	eventType, ok := config["event_type"].(string)
	if !ok || eventType == "" {
		return nil, journeyerr.NewConfigurationError(component, "event_type",
			errors.New("missing required field 'event_type'"))
	}

	rawTimeout, ok := config["timeout_hours"].(float64)
	if !ok {
		return nil, journeyerr.NewConfigurationError(component, "timeout_hours",
			errors.New("missing required field 'timeout_hours'"))
	}

	hours := int(rawTimeout)
	if hours < minTimeoutHours || hours > maxTimeoutHours {
		return nil, journeyerr.NewConfigurationError(component, "timeout_hours",
			fmt.Errorf("timeout_hours must be between %d and %d", minTimeoutHours, maxTimeoutHours))
	}

	action := models.TimeoutActionContinue

	if raw, ok := config["timeout_action"].(string); ok && raw != "" {
		action = models.TimeoutAction(raw)
		if action != models.TimeoutActionContinue && action != models.TimeoutActionExit {
			return nil, journeyerr.NewConfigurationError(component, "timeout_action",
				fmt.Errorf("unknown timeout action %q", raw))
		}
	}

	parsed := &eventWait{
		eventType:     eventType,
		timeout:       time.Duration(hours) * time.Hour,
		timeoutAction: action,
	}

	if rawFilters, ok := config["filters"]; ok {
		data, err := json.Marshal(rawFilters)
		if err != nil {
			return nil, journeyerr.NewConfigurationError(component, "filters", err)
		}

		var filters models.TriggerFilters

		if err := json.Unmarshal(data, &filters); err != nil {
			return nil, journeyerr.NewConfigurationError(component, "filters", err)
		}

		if err := filters.Validate(eventType); err != nil {
			return nil, err
		}

		parsed.filters = &filters
	}

	return parsed, nil
}
