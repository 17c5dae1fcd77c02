package prefs

import (
	"time"

	"github.com/tradeops/desksync/internal/model"
)

// MethodConfig holds per-channel delivery configuration. Values are
// validated at delivery time; a structurally invalid value silently
// disables its channel rather than failing delivery.
type MethodConfig struct {
	Email      string `yaml:"email"`
	WebhookURL string `yaml:"webhookUrl"`
	Phone      string `yaml:"phone"`
}

// QuietHours is a daily window during which only critical notifications
// are delivered. Times are "HH:MM"; the range may cross midnight.
// Empty start and end disables quiet hours.
type QuietHours struct {
	Start string `yaml:"startTime"`
	End   string `yaml:"endTime"`
}

// Enabled reports whether a quiet-hours window is configured.
func (q QuietHours) Enabled() bool {
	return q.Start != "" && q.End != "" && q.Start != q.End
}

// Contains reports whether t falls inside the quiet window.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled() {
		return false
	}
	start, err := parseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(q.End)
	if err != nil {
		return false
	}

	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m < end
	}
	// Window crosses midnight, e.g. 22:00-07:00.
	return m >= start || m < end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Grouping controls how history collapses notifications that share a
// group key.
type Grouping struct {
	WindowMinutes int `yaml:"windowMinutes"`
}

// Digest controls periodic summary delivery.
type Digest struct {
	FrequencyMinutes int `yaml:"frequencyMinutes"`
}

// Sounds controls audible notification cues.
type Sounds struct {
	Enabled bool `yaml:"enabled"`
}

// Preferences is the per-session notification preference set. It is
// loaded once at session start and handed to consumers by reference
// through the Store; there is no ambient global.
type Preferences struct {
	DeliveryMethods      map[model.Channel]bool                    `yaml:"deliveryMethods"`
	DeliveryMethodConfig MethodConfig                              `yaml:"deliveryMethodConfig"`
	PriorityMatrix       map[model.Channel]map[model.Priority]bool `yaml:"priorityMatrix"`
	QuietHours           QuietHours                                `yaml:"quietHours"`
	Grouping             Grouping                                  `yaml:"grouping"`
	EventToggles         map[string]bool                           `yaml:"eventToggles"`
	Sounds               Sounds                                    `yaml:"sounds"`
	Digest               Digest                                    `yaml:"digest"`
}

// Defaults returns the default preference set: in-app delivery for
// everything, external channels for critical only.
func Defaults() Preferences {
	methods := map[model.Channel]bool{
		model.ChannelInApp: true,
	}
	matrix := make(map[model.Channel]map[model.Priority]bool, len(model.Channels()))
	for _, ch := range model.Channels() {
		row := make(map[model.Priority]bool, len(model.Priorities()))
		for _, p := range model.Priorities() {
			if ch == model.ChannelInApp {
				row[p] = true
			} else {
				row[p] = p == model.PriorityCritical
			}
		}
		matrix[ch] = row
	}

	return Preferences{
		DeliveryMethods: methods,
		PriorityMatrix:  matrix,
		Grouping:        Grouping{WindowMinutes: 5},
		EventToggles:    map[string]bool{},
		Sounds:          Sounds{Enabled: true},
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	out := p

	out.DeliveryMethods = make(map[model.Channel]bool, len(p.DeliveryMethods))
	for ch, v := range p.DeliveryMethods {
		out.DeliveryMethods[ch] = v
	}

	out.PriorityMatrix = make(map[model.Channel]map[model.Priority]bool, len(p.PriorityMatrix))
	for ch, row := range p.PriorityMatrix {
		cp := make(map[model.Priority]bool, len(row))
		for pr, v := range row {
			cp[pr] = v
		}
		out.PriorityMatrix[ch] = cp
	}

	out.EventToggles = make(map[string]bool, len(p.EventToggles))
	for k, v := range p.EventToggles {
		out.EventToggles[k] = v
	}

	return out
}
