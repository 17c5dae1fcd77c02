package prefs

import (
	"testing"
	"time"

	"github.com/tradeops/desksync/internal/model"
)

func TestDefaults(t *testing.T) {
	p := Defaults()

	if !p.DeliveryMethods[model.ChannelInApp] {
		t.Error("in_app delivery not enabled by default")
	}
	if p.DeliveryMethods[model.ChannelEmail] {
		t.Error("email delivery enabled by default")
	}

	// In-app passes every priority; external channels critical only.
	for _, pr := range model.Priorities() {
		if !p.PriorityMatrix[model.ChannelInApp][pr] {
			t.Errorf("in_app matrix blocks %s by default", pr)
		}
	}
	for _, ch := range model.ExternalChannels() {
		if !p.PriorityMatrix[ch][model.PriorityCritical] {
			t.Errorf("%s matrix blocks critical by default", ch)
		}
		if p.PriorityMatrix[ch][model.PriorityInfo] {
			t.Errorf("%s matrix passes info by default", ch)
		}
	}

	if p.Grouping.WindowMinutes != 5 {
		t.Errorf("grouping window = %d, want 5", p.Grouping.WindowMinutes)
	}
}

func TestQuietHours_Contains(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 8, 27, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		q    QuietHours
		t    time.Time
		want bool
	}{
		{"inside same-day window", QuietHours{Start: "09:00", End: "17:00"}, at(12, 0), true},
		{"before same-day window", QuietHours{Start: "09:00", End: "17:00"}, at(8, 59), false},
		{"at start is inside", QuietHours{Start: "09:00", End: "17:00"}, at(9, 0), true},
		{"at end is outside", QuietHours{Start: "09:00", End: "17:00"}, at(17, 0), false},
		{"overnight late evening", QuietHours{Start: "22:00", End: "07:00"}, at(23, 30), true},
		{"overnight early morning", QuietHours{Start: "22:00", End: "07:00"}, at(6, 59), true},
		{"overnight daytime", QuietHours{Start: "22:00", End: "07:00"}, at(12, 0), false},
		{"disabled when empty", QuietHours{}, at(12, 0), false},
		{"disabled when start equals end", QuietHours{Start: "09:00", End: "09:00"}, at(9, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestSanitize_RepairsFieldByField(t *testing.T) {
	p := Preferences{
		DeliveryMethods: map[model.Channel]bool{
			model.ChannelInApp:   true,
			model.Channel("fax"): true, // unknown, dropped
			model.ChannelEmail:   true, // valid, kept
		},
		PriorityMatrix: map[model.Channel]map[model.Priority]bool{
			model.ChannelInApp: {
				model.PriorityCritical:   true,
				model.Priority("urgent"): true, // unknown, dropped
			},
			model.Channel("pager"): { // unknown channel, dropped
				model.PriorityCritical: true,
			},
		},
		QuietHours: QuietHours{Start: "25:99", End: "07:00"}, // invalid, reset
		Grouping:   Grouping{WindowMinutes: -1},              // invalid, defaulted
		Digest:     Digest{FrequencyMinutes: -5},             // invalid, defaulted
	}

	sanitize(&p, discardLogger())

	if _, ok := p.DeliveryMethods[model.Channel("fax")]; ok {
		t.Error("unknown delivery method survived")
	}
	if !p.DeliveryMethods[model.ChannelEmail] {
		t.Error("valid delivery method was lost")
	}
	if _, ok := p.PriorityMatrix[model.Channel("pager")]; ok {
		t.Error("unknown matrix channel survived")
	}
	if _, ok := p.PriorityMatrix[model.ChannelInApp][model.Priority("urgent")]; ok {
		t.Error("unknown matrix priority survived")
	}
	if !p.PriorityMatrix[model.ChannelInApp][model.PriorityCritical] {
		t.Error("valid matrix entry was lost")
	}
	if p.QuietHours.Enabled() {
		t.Errorf("invalid quiet hours survived: %+v", p.QuietHours)
	}
	if p.Grouping.WindowMinutes != 5 {
		t.Errorf("grouping window = %d, want default 5", p.Grouping.WindowMinutes)
	}
	if p.Digest.FrequencyMinutes != 0 {
		t.Errorf("digest frequency = %d, want default 0", p.Digest.FrequencyMinutes)
	}
	if p.EventToggles == nil {
		t.Error("nil event toggles not initialized")
	}
}

func TestValidate_Strict(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Preferences)
		wantErr bool
	}{
		{"defaults valid", func(p *Preferences) {}, false},
		{"unknown channel", func(p *Preferences) {
			p.DeliveryMethods[model.Channel("fax")] = true
		}, true},
		{"unknown matrix priority", func(p *Preferences) {
			p.PriorityMatrix[model.ChannelInApp][model.Priority("urgent")] = true
		}, true},
		{"bad quiet hours", func(p *Preferences) {
			p.QuietHours = QuietHours{Start: "9am", End: "17:00"}
		}, true},
		{"grouping window too large", func(p *Preferences) {
			p.Grouping.WindowMinutes = 100000
		}, true},
		{"valid quiet hours", func(p *Preferences) {
			p.QuietHours = QuietHours{Start: "22:00", End: "07:00"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClone_Deep(t *testing.T) {
	p := Defaults()
	p.EventToggles["order_filled"] = true

	c := p.Clone()
	c.DeliveryMethods[model.ChannelEmail] = true
	c.PriorityMatrix[model.ChannelEmail][model.PriorityInfo] = true
	c.EventToggles["order_filled"] = false

	if p.DeliveryMethods[model.ChannelEmail] {
		t.Error("clone shares DeliveryMethods")
	}
	if p.PriorityMatrix[model.ChannelEmail][model.PriorityInfo] {
		t.Error("clone shares PriorityMatrix rows")
	}
	if !p.EventToggles["order_filled"] {
		t.Error("clone shares EventToggles")
	}
}
