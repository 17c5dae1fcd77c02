package notify

import (
	"regexp"
	"strings"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/prefs"
)

// slackWebhookPrefix is the only webhook host accepted for slack
// delivery.
const slackWebhookPrefix = "https://hooks.slack.com/"

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// channelConfigValid reports whether the delivery configuration for an
// external channel is usable. An invalid configuration silently
// disables the channel; it never fails a publish.
func channelConfigValid(ch model.Channel, cfg prefs.MethodConfig) bool {
	switch ch {
	case model.ChannelEmail:
		return emailRe.MatchString(cfg.Email)
	case model.ChannelSMS:
		return phoneRe.MatchString(cfg.Phone)
	case model.ChannelSlack:
		return strings.HasPrefix(cfg.WebhookURL, slackWebhookPrefix)
	case model.ChannelPush:
		// Push needs no per-user configuration.
		return true
	default:
		return false
	}
}
