package notify

import (
	"testing"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/prefs"
)

func TestChannelConfigValid(t *testing.T) {
	tests := []struct {
		name string
		ch   model.Channel
		cfg  prefs.MethodConfig
		want bool
	}{
		{"valid email", model.ChannelEmail, prefs.MethodConfig{Email: "trader@desk.example.com"}, true},
		{"email missing at", model.ChannelEmail, prefs.MethodConfig{Email: "trader.desk.example.com"}, false},
		{"email missing domain dot", model.ChannelEmail, prefs.MethodConfig{Email: "trader@localhost"}, false},
		{"email with spaces", model.ChannelEmail, prefs.MethodConfig{Email: "tra der@desk.example.com"}, false},
		{"empty email", model.ChannelEmail, prefs.MethodConfig{}, false},

		{"valid phone", model.ChannelSMS, prefs.MethodConfig{Phone: "+12125550187"}, true},
		{"phone without plus", model.ChannelSMS, prefs.MethodConfig{Phone: "12125550187"}, true},
		{"phone too short", model.ChannelSMS, prefs.MethodConfig{Phone: "+123"}, false},
		{"phone with letters", model.ChannelSMS, prefs.MethodConfig{Phone: "+1212call-now"}, false},

		{"valid slack webhook", model.ChannelSlack, prefs.MethodConfig{WebhookURL: "https://hooks.slack.com/services/T0/B0/x"}, true},
		{"wrong webhook host", model.ChannelSlack, prefs.MethodConfig{WebhookURL: "https://evil.example.com/services/T0"}, false},
		{"http webhook", model.ChannelSlack, prefs.MethodConfig{WebhookURL: "http://hooks.slack.com/services/T0"}, false},
		{"empty webhook", model.ChannelSlack, prefs.MethodConfig{}, false},

		{"push needs no config", model.ChannelPush, prefs.MethodConfig{}, true},
		{"in_app is not external", model.ChannelInApp, prefs.MethodConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := channelConfigValid(tt.ch, tt.cfg); got != tt.want {
				t.Errorf("channelConfigValid(%s, %+v) = %v, want %v", tt.ch, tt.cfg, got, tt.want)
			}
		})
	}
}
