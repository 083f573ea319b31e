// Package notify fans decision-core events out to subscribers and sinks
package notify

import (
	"time"

	"tradecore/internal/core"
)

type EventType string

const (
	EventArbitrage   EventType = "arbitrage"
	EventTradeClosed EventType = "trade-closed"
)

// Event is one notification. Exactly one payload field is set, matching Type.
type Event struct {
	Type        EventType                  `json:"type"`
	Time        time.Time                  `json:"time"`
	Opportunity *core.ArbitrageOpportunity `json:"opportunity,omitempty"`
	Trade       *core.ClosedTrade          `json:"trade,omitempty"`
}

func ArbitrageEvent(o core.ArbitrageOpportunity, at time.Time) Event {
	return Event{Type: EventArbitrage, Time: at, Opportunity: &o}
}

func TradeClosedEvent(t core.ClosedTrade) Event {
	return Event{Type: EventTradeClosed, Time: t.ExitTime, Trade: &t}
}
