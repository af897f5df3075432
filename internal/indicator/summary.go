package indicator

import (
	"strings"

	"github.com/shopspring/decimal"

	"crypto-ai-trading/internal/model"
)

// Round2 rounds v to two decimals for display. Engines never round.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Summary renders a one-line human-readable digest of ti.
// Members filled with neutral defaults are reported as "n/a".
func Summary(ti model.TechnicalIndicators) string {
	var b strings.Builder
	b.WriteString(ti.Symbol)
	b.WriteString(": ")
	b.WriteString(strings.ToUpper(strings.ReplaceAll(ti.Overall.Recommendation.String(), "_", " ")))
	b.WriteString(" (")
	b.WriteString(ti.Overall.Signal.String())
	b.WriteString(", confidence ")
	b.WriteString(fixed(ti.Overall.Confidence * 100))
	b.WriteString("%)")

	b.WriteString(" | RSI ")
	if ti.Complete.RSI {
		b.WriteString(fixed(ti.RSI.Value) + " " + ti.RSI.Signal.String() + " (" + ti.RSI.Strength.String() + ")")
		if ti.RSI.Divergence != model.DivergenceNone {
			b.WriteString(", " + ti.RSI.Divergence.String() + " divergence")
		}
	} else {
		b.WriteString("n/a")
	}

	b.WriteString(" | StochRSI ")
	if ti.Complete.StochRSI {
		b.WriteString("K " + fixed(ti.StochRSI.K) + " D " + fixed(ti.StochRSI.D) + " " + ti.StochRSI.Signal.String())
	} else {
		b.WriteString("n/a")
	}

	b.WriteString(" | BMSB ")
	if ti.Complete.BMSB {
		band := ti.BMSB
		b.WriteString(band.Position.String() + " band " + fixed(band.Lower()) + "-" + fixed(band.Upper()))
		b.WriteString(", " + band.Signal.String() + ", strength " + fixed(band.Strength))
		if band.Breakout != model.BreakoutNone {
			b.WriteString(", " + band.Breakout.String())
		}
	} else {
		b.WriteString("n/a")
	}
	return b.String()
}
