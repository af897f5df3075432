package notification

import (
	"strings"

	"github.com/shopspring/decimal"

	"crypto-ai-trading/internal/model"
)

func label(r model.Recommendation) string {
	return strings.ToUpper(strings.ReplaceAll(r.String(), "_", " "))
}

func fixed(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

// Title is the headline, e.g. "STRONG BUY: BTC/USDT".
func (a Alert) Title() string {
	return label(a.Recommendation()) + ": " + a.Symbol()
}

// Details renders the snapshot one line per fact: price, the overall
// score, the previous recommendation, then each indicator. Indicators
// filled with neutral defaults read "n/a".
func (a Alert) Details() []string {
	ti := a.Snapshot
	lines := []string{
		"Price: " + decimal.NewFromFloat(ti.BMSB.CurrentPrice).String(),
		"Confidence: " + fixed(ti.Overall.Confidence*100) + "% (" + ti.Overall.Signal.String() +
			", net score " + fixed(ti.Overall.NetScore) + ")",
	}
	if !a.First {
		lines = append(lines, "Previously: "+label(a.Previous))
	}

	rsi := "RSI: n/a"
	if ti.Complete.RSI {
		rsi = "RSI: " + fixed(ti.RSI.Value) + " " + ti.RSI.Signal.String() + " (" + ti.RSI.Strength.String() + ")"
		if ti.RSI.Divergence != model.DivergenceNone {
			rsi += ", " + ti.RSI.Divergence.String() + " divergence"
		}
	}
	stoch := "StochRSI: n/a"
	if ti.Complete.StochRSI {
		stoch = "StochRSI: K " + fixed(ti.StochRSI.K) + " / D " + fixed(ti.StochRSI.D) + " " + ti.StochRSI.Signal.String()
	}
	band := "BMSB: n/a"
	if ti.Complete.BMSB {
		b := ti.BMSB
		band = "BMSB: " + b.Position.String() + " band " + fixed(b.Lower()) + "-" + fixed(b.Upper()) +
			", strength " + fixed(b.Strength)
		if b.Breakout != model.BreakoutNone {
			band += ", " + b.Breakout.String()
		}
	}
	return append(lines, rsi, stoch, band)
}

// Text is the plain-text rendering: the title followed by Details.
func (a Alert) Text() string {
	return a.Title() + "\n" + strings.Join(a.Details(), "\n")
}
