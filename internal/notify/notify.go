// Package notify pushes completed orders to the kitchen's Slack channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/orderline-io/orderline/pkg/protocol"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts one message per completed order. Delivery is best
// effort; failures are logged, never surfaced to the call path.
type SlackNotifier struct {
	client  slackPoster
	channel string
	logger  *slog.Logger
}

// NewSlack creates a notifier for the given bot token and channel ID.
func NewSlack(token, channel string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

func (n *SlackNotifier) OrderCompleted(ctx context.Context, rec *protocol.CallRecord) {
	if rec.Order == nil {
		return
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(formatOrder(rec), false))
	if err != nil {
		n.logger.Error("slack notification failed", "call", rec.CallID, "error", err)
		return
	}
	n.logger.Info("order notification sent", "call", rec.CallID, "order", rec.Order.ID)
}

func formatOrder(rec *protocol.CallRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*New phone order* `%s`\n", rec.Order.ID)
	for _, item := range rec.Order.Items {
		fmt.Fprintf(&b, "• %dx %s", item.Quantity, item.ItemName)
		if len(item.Modifiers) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(item.Modifiers, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Call %s, placed %s", rec.CallID, rec.Order.CreatedAt.Format("15:04:05"))
	return b.String()
}
