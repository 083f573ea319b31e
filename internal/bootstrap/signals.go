package bootstrap

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/trading/trader"
	"tradecore/pkg/apperrors"
)

// SignalHandler consumes trade signals
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig trader.Signal) error
}

// SignalFeed reads one JSON signal per line and hands it to the trader.
// Missing symbol, timeframe and time fields take the feed defaults.
type SignalFeed struct {
	r         io.Reader
	handler   SignalHandler
	symbol    string
	timeframe string
	now       func() time.Time
	logger    core.ILogger
}

func NewSignalFeed(r io.Reader, handler SignalHandler, symbol, timeframe string, logger core.ILogger) *SignalFeed {
	return &SignalFeed{
		r:         r,
		handler:   handler,
		symbol:    symbol,
		timeframe: timeframe,
		now:       time.Now,
		logger:    logger.WithField("component", "signal_feed"),
	}
}

// Run handles signals until the reader is exhausted or ctx is cancelled.
// Rejected signals are logged and do not stop the feed.
func (f *SignalFeed) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(f.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			f.handle(ctx, line)
		}
	}
}

func (f *SignalFeed) handle(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var sig trader.Signal
	if err := json.Unmarshal([]byte(line), &sig); err != nil {
		f.logger.Warn("Malformed signal", "line", line, "error", err)
		return
	}
	if sig.Symbol == "" {
		sig.Symbol = f.symbol
	}
	if sig.Timeframe == "" {
		sig.Timeframe = f.timeframe
	}
	if sig.Time.IsZero() {
		sig.Time = f.now()
	}

	err := f.handler.HandleSignal(ctx, sig)
	switch {
	case err == nil:
		f.logger.Info("Signal handled", "symbol", sig.Symbol, "side", string(sig.Side))
	case errors.Is(err, apperrors.ErrLowConfidence), errors.Is(err, apperrors.ErrMaxPositionsReached):
		f.logger.Info("Signal skipped", "symbol", sig.Symbol, "side", string(sig.Side), "reason", err)
	default:
		f.logger.Warn("Signal failed", "symbol", sig.Symbol, "side", string(sig.Side), "error", err)
	}
}
