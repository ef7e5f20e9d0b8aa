package scheduler

import "time"

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	interval time.Duration
}

// Every returns a schedule firing every d. Intervals under a second are
// raised to one second.
func Every(d time.Duration) IntervalSchedule {
	if d < time.Second {
		d = time.Second
	}
	return IntervalSchedule{interval: d}
}

// Next implements Schedule.
func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

func (s IntervalSchedule) String() string {
	return "every " + s.interval.String()
}
