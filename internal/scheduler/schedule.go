// Package scheduler runs jobs on cron schedules without letting a job
// overlap itself, in this process or, with a Locker, across processes.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// DailySpec is the five-field cron spec firing every day at hour:00.
func DailySpec(hour int) string {
	return fmt.Sprintf("0 %d * * *", clamp(hour, 0, 23))
}

// MonthlySpec fires on day of every month at hour:00. Day is clamped to
// 1..28 so every month has it.
func MonthlySpec(day, hour int) string {
	return fmt.Sprintf("0 %d %d * *", clamp(hour, 0, 23), clamp(day, 1, 28))
}

// ParseSpec validates a standard five-field spec or descriptor (@daily).
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return sched, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
