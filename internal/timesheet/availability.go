package timesheet

import "strings"

// DefaultAvailableHours applies to users without a participant entry.
const DefaultAvailableHours = 80.0

type Participant struct {
	Name           string
	AvailableHours float64
}

// Availability returns the available hours of each user. A participant
// applies when its name equals the user's display name, ignoring case and
// surrounding whitespace; everyone else gets DefaultAvailableHours.
func Availability(userNames map[string]string, participants []Participant) map[string]float64 {
	byName := make(map[string]float64, len(participants))
	for _, p := range participants {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			continue
		}
		byName[name] = p.AvailableHours
	}

	out := make(map[string]float64, len(userNames))
	for user, display := range userNames {
		if h, ok := byName[strings.ToLower(strings.TrimSpace(display))]; ok {
			out[user] = h
			continue
		}
		out[user] = DefaultAvailableHours
	}
	return out
}
