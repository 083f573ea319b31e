package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of an order or position
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PositionStatus is the lifecycle state of a Position
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason records which event closed a position
type ExitReason string

const (
	ExitSignal     ExitReason = "signal"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitManual     ExitReason = "manual"
)

// Ticker is a venue's view of a symbol
type Ticker struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Timestamp time.Time
}

// Quote is a point-in-time price observation for one venue and symbol
type Quote struct {
	Venue  string
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Last   decimal.Decimal
}

// Valid reports whether both sides of the book are usable
func (q Quote) Valid() bool {
	return q.Bid.IsPositive() && q.Ask.IsPositive()
}

// QuoteSnapshot maps venue -> symbol -> quote
type QuoteSnapshot map[string]map[string]Quote

// Put stores a quote, creating the venue entry on demand
func (s QuoteSnapshot) Put(q Quote) {
	venue, ok := s[q.Venue]
	if !ok {
		venue = make(map[string]Quote)
		s[q.Venue] = venue
	}
	venue[q.Symbol] = q
}

// Balance in quote currency
type Balance struct {
	Total decimal.Decimal
	Free  decimal.Decimal
}

// OrderRequest is what the core asks a venue to execute
type OrderRequest struct {
	Symbol string
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Order is a venue acknowledgement
type Order struct {
	ID        string
	Venue     string
	Symbol    string
	Side      Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// SignalRequest is a candidate signal handed to the classifier
type SignalRequest struct {
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Timeframe string
	Time      time.Time
}

// Prediction is the classifier verdict. Confidence is in [0,1].
type Prediction struct {
	Confidence      float64
	PredictedReturn float64
}

// Position is owned by the ledger; other components refer to it by ID
type Position struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Venue           string          `json:"venue"`
	Side            Side            `json:"side"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	Size            decimal.Decimal `json:"size"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	Cost            decimal.Decimal `json:"cost"`
	Status          PositionStatus  `json:"status"`
	EntryTime       time.Time       `json:"entry_time"`

	ExitPrice     *decimal.Decimal `json:"exit_price,omitempty"`
	ExitTime      *time.Time       `json:"exit_time,omitempty"`
	Profit        *decimal.Decimal `json:"profit,omitempty"`
	ProfitPercent *decimal.Decimal `json:"profit_percent,omitempty"`
	ExitReason    ExitReason       `json:"exit_reason,omitempty"`
}

// ClosedTrade is an immutable record of a closed position
type ClosedTrade struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Venue         string          `json:"venue"`
	Side          Side            `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Size          decimal.Decimal `json:"size"`
	Cost          decimal.Decimal `json:"cost"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	EntryTime     time.Time       `json:"entry_time"`
	ExitTime      time.Time       `json:"exit_time"`
	ExitReason    ExitReason      `json:"exit_reason"`
}

// ArbitrageOpportunity is a cross-venue price discrepancy. SellPrice > BuyPrice always.
type ArbitrageOpportunity struct {
	Symbol         string          `json:"symbol"`
	BuyVenue       string          `json:"buy_venue"`
	SellVenue      string          `json:"sell_venue"`
	BuyPrice       decimal.Decimal `json:"buy_price"`
	SellPrice      decimal.Decimal `json:"sell_price"`
	Amount         decimal.Decimal `json:"amount"`
	ProfitPercent  decimal.Decimal `json:"profit_percent"`
	ProfitAbsolute decimal.Decimal `json:"profit_absolute"`
}

// Cost of the buy leg
func (o ArbitrageOpportunity) Cost() decimal.Decimal {
	return o.BuyPrice.Mul(o.Amount)
}

// Revenue of the sell leg
func (o ArbitrageOpportunity) Revenue() decimal.Decimal {
	return o.SellPrice.Mul(o.Amount)
}

// EquityPoint is one sample of account balance
type EquityPoint struct {
	Time    time.Time       `json:"time"`
	Balance decimal.Decimal `json:"balance"`
}

// ClassifiedTrade is one labelled example in the classifier history
type ClassifiedTrade struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Price      decimal.Decimal  `json:"price"`
	Timeframe  string           `json:"timeframe"`
	Confidence float64          `json:"confidence"`
	Pattern    string           `json:"pattern"`
	Time       time.Time        `json:"time"`
	Profit     *decimal.Decimal `json:"profit,omitempty"`
}

// PatternStats counts outcomes for one pattern key
type PatternStats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// ClassifierState is the serializable classifier history
type ClassifierState struct {
	Trades   []ClassifiedTrade       `json:"trades"`
	Patterns map[string]PatternStats `json:"patterns"`
}

// Snapshot is the persisted state of a live trader
type Snapshot struct {
	Positions     []Position      `json:"positions"`
	CurrentSymbol string          `json:"current_symbol"`
	Classifier    ClassifierState `json:"classifier"`
	SavedAt       time.Time       `json:"saved_at"`
}
