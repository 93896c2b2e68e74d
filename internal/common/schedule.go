package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DailyTimeLayout is the wall-clock format of a daily trigger
const DailyTimeLayout = "15:04"

// ErrInvalidSchedule is returned for a daily time that is not a valid HH:MM
var ErrInvalidSchedule = errors.New("invalid schedule")

var dailyParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DailyCronSpec converts "HH:MM" into the equivalent 5-field cron expression
func DailyCronSpec(at string) (string, error) {
	t, err := time.Parse(DailyTimeLayout, at)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not HH:MM", ErrInvalidSchedule, at)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// ParseDailySchedule parses "HH:MM" into a cron schedule firing once a day in local time
func ParseDailySchedule(at string) (cron.Schedule, string, error) {
	spec, err := DailyCronSpec(at)
	if err != nil {
		return nil, "", err
	}
	schedule, err := dailyParser.Parse(spec)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return schedule, spec, nil
}
