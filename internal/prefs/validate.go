package prefs

import (
	"fmt"
	"log/slog"
)

// maxGroupingWindowMinutes bounds the history grouping window at one day.
const maxGroupingWindowMinutes = 24 * 60

// sanitize repairs a loaded preference set field by field: every
// structurally invalid value is replaced with its default, never the
// whole object. Unknown channel or priority keys are dropped.
func sanitize(p *Preferences, logger *slog.Logger) {
	def := Defaults()

	if p.DeliveryMethods == nil {
		p.DeliveryMethods = def.DeliveryMethods
	} else {
		for ch := range p.DeliveryMethods {
			if !ch.Valid() {
				logger.Warn("dropping unknown delivery method", "channel", string(ch))
				delete(p.DeliveryMethods, ch)
			}
		}
	}

	if p.PriorityMatrix == nil {
		p.PriorityMatrix = def.PriorityMatrix
	} else {
		for ch, row := range p.PriorityMatrix {
			if !ch.Valid() {
				logger.Warn("dropping unknown matrix channel", "channel", string(ch))
				delete(p.PriorityMatrix, ch)
				continue
			}
			for pr := range row {
				if !pr.Valid() {
					logger.Warn("dropping unknown matrix priority", "priority", string(pr))
					delete(row, pr)
				}
			}
		}
	}

	if p.QuietHours.Start != "" || p.QuietHours.End != "" {
		if err := p.QuietHours.validate(); err != nil {
			logger.Warn("invalid quiet hours, resetting", "error", err)
			p.QuietHours = def.QuietHours
		}
	}

	if p.Grouping.WindowMinutes < 1 || p.Grouping.WindowMinutes > maxGroupingWindowMinutes {
		p.Grouping = def.Grouping
	}

	if p.Digest.FrequencyMinutes < 0 {
		p.Digest = def.Digest
	}

	if p.EventToggles == nil {
		p.EventToggles = map[string]bool{}
	}
}

// Validate checks the whole preference set strictly. Used by Import,
// which rejects wholesale instead of repairing.
func (p Preferences) Validate() error {
	for ch := range p.DeliveryMethods {
		if !ch.Valid() {
			return fmt.Errorf("deliveryMethods: unknown channel %q", string(ch))
		}
	}

	for ch, row := range p.PriorityMatrix {
		if !ch.Valid() {
			return fmt.Errorf("priorityMatrix: unknown channel %q", string(ch))
		}
		for pr := range row {
			if !pr.Valid() {
				return fmt.Errorf("priorityMatrix[%s]: unknown priority %q", string(ch), string(pr))
			}
		}
	}

	if p.QuietHours.Start != "" || p.QuietHours.End != "" {
		if err := p.QuietHours.validate(); err != nil {
			return fmt.Errorf("quietHours: %w", err)
		}
	}

	if p.Grouping.WindowMinutes < 1 || p.Grouping.WindowMinutes > maxGroupingWindowMinutes {
		return fmt.Errorf("grouping.windowMinutes must be between 1 and %d, got %d",
			maxGroupingWindowMinutes, p.Grouping.WindowMinutes)
	}

	if p.Digest.FrequencyMinutes < 0 {
		return fmt.Errorf("digest.frequencyMinutes must be >= 0, got %d", p.Digest.FrequencyMinutes)
	}

	return nil
}

func (q QuietHours) validate() error {
	if q.Start == "" || q.End == "" {
		return fmt.Errorf("both startTime and endTime are required")
	}
	if _, err := parseClock(q.Start); err != nil {
		return fmt.Errorf("startTime %q: not HH:MM", q.Start)
	}
	if _, err := parseClock(q.End); err != nil {
		return fmt.Errorf("endTime %q: not HH:MM", q.End)
	}
	return nil
}
