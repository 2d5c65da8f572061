package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// Schedule is the user's day as minutes after midnight. Sleep may wrap past midnight.
type Schedule struct {
	Wake        int
	Sleep       int
	Training    int
	HasTraining bool
}

// ScheduleFromContext reads wakeTime, sleepTime and trainingTime ("HH:MM") from the
// intake answers. It returns nil when wake or sleep time is unknown.
func ScheduleFromContext(uc UserContext) *Schedule {
	if uc == nil {
		return nil
	}
	wake, ok := parseClock(asText(uc["wakeTime"]))
	if !ok {
		return nil
	}
	sleep, ok := parseClock(asText(uc["sleepTime"]))
	if !ok {
		return nil
	}
	s := &Schedule{Wake: wake, Sleep: sleep}
	if train, ok := parseClock(asText(uc["trainingTime"])); ok {
		s.Training = train
		s.HasTraining = true
	}
	return s
}

// offset maps a clock time onto the waking day starting at Wake.
func (s *Schedule) offset(t int) int {
	return ((t-s.Wake)%minutesPerDay + minutesPerDay) % minutesPerDay
}

func (s *Schedule) awake(t int) bool {
	span := s.offset(s.Sleep)
	if span == 0 {
		return true
	}
	return s.offset(t) <= span
}

// before reports whether a comes strictly before b within the waking day.
func (s *Schedule) before(a, b int) bool {
	return s.offset(a) < s.offset(b)
}

func parseClock(raw string) (int, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	raw = strings.TrimSuffix(raw, "h")
	raw = strings.Replace(raw, "h", ":", 1)
	parts := strings.Split(raw, ":")
	if len(parts) < 1 || len(parts) > 2 || parts[0] == "" {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m := 0
	if len(parts) == 2 && parts[1] != "" {
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, false
		}
	}
	return h*60 + m, true
}

func formatClock(t int) string {
	return fmt.Sprintf("%02d:%02d", t/60, t%60)
}
