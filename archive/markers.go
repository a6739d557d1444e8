package archive

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/timeseries"
)

// ErrInvalidMarker is returned when a time marker cannot be resolved.
var ErrInvalidMarker = errors.New("invalid time marker")

// Anchors are the reference times symbolic markers resolve against.
type Anchors struct {
	First time.Time
	Last  time.Time
	Now   time.Time
}

type marker struct {
	keyword  string
	absolute time.Time
	offset   time.Duration
}

const (
	keywordFirst = "first"
	keywordLast  = "last"
	keywordNow   = "now"
	keywordStart = "start"
	keywordEnd   = "end"
)

var keywords = []string{keywordFirst, keywordLast, keywordNow, keywordStart, keywordEnd}

// parseMarker accepts unix seconds, RFC3339, or one of first, last, now,
// start, end optionally followed by a signed duration ("end-30d", "last+1h").
func parseMarker(s string) (marker, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return marker{}, errors.Wrap(ErrInvalidMarker, "empty marker")
	}

	if secs, err := strconv.ParseInt(in, 10, 64); err == nil {
		return marker{absolute: time.Unix(secs, 0).UTC()}, nil
	}
	if t, err := time.Parse(time.RFC3339, in); err == nil {
		return marker{absolute: t}, nil
	}

	lower := strings.ToLower(in)
	for _, kw := range keywords {
		if !strings.HasPrefix(lower, kw) {
			continue
		}
		rest := strings.TrimSpace(lower[len(kw):])
		if rest == "" {
			return marker{keyword: kw}, nil
		}
		if rest[0] != '-' && rest[0] != '+' {
			break
		}
		d, err := timeseries.ParseDuration(rest)
		if err != nil {
			return marker{}, errors.Wrapf(ErrInvalidMarker, "%q: %v", s, err)
		}
		return marker{keyword: kw, offset: d}, nil
	}

	return marker{}, errors.Wrapf(ErrInvalidMarker, "%q", s)
}

func (m marker) resolve(a Anchors, start, end *time.Time) (time.Time, error) {
	var base time.Time
	switch m.keyword {
	case "":
		base = m.absolute
	case keywordFirst:
		base = a.First
	case keywordLast:
		base = a.Last
	case keywordNow:
		base = a.Now
	case keywordStart:
		if start == nil {
			return time.Time{}, errors.Wrap(ErrInvalidMarker, "start cannot reference itself")
		}
		base = *start
	case keywordEnd:
		if end == nil {
			return time.Time{}, errors.Wrap(ErrInvalidMarker, "end cannot reference itself")
		}
		base = *end
	}
	return base.Add(m.offset), nil
}

// ResolveRange turns a pair of markers into absolute times. The start marker
// may be relative to the resolved end ("end-30d") and the end marker relative
// to the resolved start ("start+1d"), but not both at once.
func ResolveRange(startMarker, endMarker string, a Anchors) (start, end time.Time, err error) {
	sm, err := parseMarker(startMarker)
	if err != nil {
		return start, end, err
	}
	em, err := parseMarker(endMarker)
	if err != nil {
		return start, end, err
	}

	if sm.keyword == keywordEnd && em.keyword == keywordStart {
		return start, end, errors.Wrap(ErrInvalidMarker, "start and end reference each other")
	}

	if sm.keyword == keywordEnd {
		if end, err = em.resolve(a, nil, nil); err != nil {
			return start, end, err
		}
		start, err = sm.resolve(a, nil, &end)
	} else {
		if start, err = sm.resolve(a, nil, nil); err != nil {
			return start, end, err
		}
		end, err = em.resolve(a, &start, nil)
	}
	if err != nil {
		return start, end, err
	}

	if !end.After(start) {
		return start, end, errors.Wrapf(ErrInvalidMarker, "end %s is not after start %s", end, start)
	}
	return start, end, nil
}
