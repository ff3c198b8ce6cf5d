package booking

import "time"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return Validationf("start and end are required")
	}
	if !i.Start.Before(i.End) {
		return Validationf("start %s must be before end %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether two half-open intervals share an instant. Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }
