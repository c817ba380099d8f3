package notify

import (
	"fmt"
	"strings"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// messageTimeLayout matches the operator-facing timestamp format.
const messageTimeLayout = "02-01-2006 15:04:05"

// FormatSignalEvent renders a signal event as a chat notification title and
// body. A flip includes the realized profit of the closed position.
func FormatSignalEvent(evt domain.SignalEvent) (title, message string) {
	emoji := directionEmoji(evt.Direction)
	title = fmt.Sprintf("%s %s SIGNAL %s", emoji, strings.ToUpper(evt.Ticker), emoji)

	var b strings.Builder
	fmt.Fprintf(&b, "Signal: %s\n", evt.Direction.Label())
	fmt.Fprintf(&b, "Price: %v\n", evt.Price)
	fmt.Fprintf(&b, "Time: %s", evt.At.Format(messageTimeLayout))

	if evt.Outcome == domain.OutcomeFlipped && evt.Closed != nil {
		fmt.Fprintf(&b, "\nClosed %s position: %+.2f%%",
			evt.Closed.Direction.Label(), evt.Closed.ProfitPercent)
	}

	return title, b.String()
}

func directionEmoji(d domain.Direction) string {
	switch d {
	case domain.DirectionLong:
		return "\U0001F7E2" // green circle
	case domain.DirectionShort:
		return "\U0001F534" // red circle
	default:
		return "⚪" // white circle
	}
}
