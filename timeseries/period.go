package timeseries

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PeriodSamples converts a period to a number of samples at step. The period
// must be an exact multiple of step and span at least two samples.
func PeriodSamples(period, step time.Duration) (int, error) {
	if step <= 0 {
		return 0, errors.Wrapf(ErrInvalidStep, "step %s", step)
	}
	if period%step != 0 {
		return 0, errors.Wrapf(ErrInvalidPeriod, "period %s is not a multiple of step %s", period, step)
	}
	n := int(period / step)
	if n < 2 {
		return 0, errors.Wrapf(ErrInvalidPeriod, "period %s is shorter than two steps of %s", period, step)
	}
	return n, nil
}

// RoundPeriod snaps a period to the nearest multiple of step.
func RoundPeriod(period, step time.Duration) time.Duration {
	if step <= 0 {
		return period
	}
	return time.Duration(math.Round(float64(period)/float64(step))) * step
}

var durationToken = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-zµ]+)`)

var longUnits = map[string]time.Duration{
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
}

// ParseDuration parses durations such as "1d", "1d12h", "90s", "2 days" or
// "-30m". It accepts everything time.ParseDuration does plus week and day
// units and a few spelled-out unit names.
func ParseDuration(s string) (time.Duration, error) {
	in := strings.TrimSpace(strings.ToLower(s))
	if in == "" {
		return 0, errors.New("empty duration")
	}
	if d, err := time.ParseDuration(in); err == nil {
		return d, nil
	}

	sign := time.Duration(1)
	switch in[0] {
	case '-':
		sign = -1
		in = in[1:]
	case '+':
		in = in[1:]
	}

	matches := durationToken.FindAllStringSubmatchIndex(in, -1)
	if len(matches) == 0 {
		return 0, errors.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	pos := 0
	for _, m := range matches {
		if strings.TrimSpace(in[pos:m[0]]) != "" {
			return 0, errors.Errorf("invalid duration %q", s)
		}
		pos = m[1]

		num, unit := in[m[2]:m[3]], in[m[4]:m[5]]
		if u, ok := longUnits[unit]; ok {
			f, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid duration %q", s)
			}
			total += time.Duration(f * float64(u))
			continue
		}
		d, err := time.ParseDuration(num + unit)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid duration %q", s)
		}
		total += d
	}
	if strings.TrimSpace(in[pos:]) != "" {
		return 0, errors.Errorf("invalid duration %q", s)
	}

	return sign * total, nil
}
