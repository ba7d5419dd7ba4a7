package schedule

import (
	"fmt"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
)

// TWICE_DAILY delivers a second digest this many hours after the
// configured slot, wrapping past midnight.
const twiceDailyOffsetHours = 10

// WEEKLY without an explicit day delivers on Monday.
const defaultWeeklyDay = 1

// ShouldRun decides whether a digest should fire at now for the given
// configuration. It is an edge-triggered once-per-minute check: the
// user's local HH:MM must equal a delivery slot exactly. Pure; pause
// and resume-date gating belong to the driver.
func ShouldRun(prefs model.Preferences, now time.Time) bool {
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return false
	}

	local := now.In(loc)
	localTime := local.Format("15:04")

	switch prefs.Frequency {
	case model.FrequencyTwiceDaily:
		return localTime == prefs.DeliveryTime || localTime == secondSlot(prefs.DeliveryTime)
	case model.FrequencyWeekdayOnly:
		weekday := local.Weekday()
		return localTime == prefs.DeliveryTime && weekday != time.Saturday && weekday != time.Sunday
	case model.FrequencyWeekly:
		day := defaultWeeklyDay
		if prefs.WeeklyDay != nil {
			day = *prefs.WeeklyDay
		}
		return localTime == prefs.DeliveryTime && int(local.Weekday()) == day
	default:
		return localTime == prefs.DeliveryTime
	}
}

// secondSlot is the evening companion of a TWICE_DAILY delivery time:
// same minute, hour shifted by the fixed offset mod 24.
func secondSlot(deliveryTime string) string {
	parsed, err := time.Parse("15:04", deliveryTime)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%02d:%02d", (parsed.Hour()+twiceDailyOffsetHours)%24, parsed.Minute())
}
