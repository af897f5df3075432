package chat

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-ai-trading/internal/indicator"
	"crypto-ai-trading/internal/model"
)

func fixed(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

// BuildPrompt renders ti as an analysis request.
func BuildPrompt(ti model.TechnicalIndicators) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following crypto market data for %s:\n\n", ti.Symbol)
	if ti.Complete.RSI {
		fmt.Fprintf(&b, "RSI: %s (%s, %s)\n", fixed(ti.RSI.Value), ti.RSI.Signal, ti.RSI.Strength)
	}
	if ti.Complete.StochRSI {
		fmt.Fprintf(&b, "Stochastic RSI: K %s, D %s (%s)\n", fixed(ti.StochRSI.K), fixed(ti.StochRSI.D), ti.StochRSI.Signal)
	}
	if ti.Complete.BMSB {
		fmt.Fprintf(&b, "Bull Market Support Band: %s-%s, price %s is %s the band (%s)\n",
			fixed(ti.BMSB.Lower()), fixed(ti.BMSB.Upper()), fixed(ti.BMSB.CurrentPrice), ti.BMSB.Position, ti.BMSB.Signal)
	}
	fmt.Fprintf(&b, "Overall signal: %s, confidence %s%%\n", ti.Overall.Signal, fixed(ti.Overall.Confidence*100))
	fmt.Fprintf(&b, "Recommendation: %s\n\n", ti.Overall.Recommendation)
	b.WriteString("Give a detailed analysis and trading suggestions based on these indicators. ")
	b.WriteString("Keep the answer concise but informative.")
	return b.String()
}

// AnalyzeMarket asks for commentary on ti.
func (c *Client) AnalyzeMarket(ctx context.Context, ti model.TechnicalIndicators) (Reply, error) {
	if !c.live {
		return Reply{Text: demoAnalysis(ti), Mode: ModeDemo}, nil
	}
	return c.Chat(ctx, BuildPrompt(ti))
}

// AdvicePrompt renders a ticker as a trading-advice request.
func AdvicePrompt(t model.Ticker) string {
	return fmt.Sprintf("Trading analysis for %s:\n\nCurrent price: $%s\n24h change: %s%%\n\n"+
		"Based on this data provide:\n1. Analysis of the current trend\n2. Potential entry and exit points\n"+
		"3. Recommended risk management\n\nKeep the answer practical and actionable.",
		t.Symbol, decimal.NewFromFloat(t.Price).String(), fixed(t.Change24h))
}

// TradingAdvice asks for entry, exit and risk guidance on t.
func (c *Client) TradingAdvice(ctx context.Context, t model.Ticker) (Reply, error) {
	return c.Chat(ctx, AdvicePrompt(t))
}

var demoReplies = []string{
	"Current technical analysis shows mixed signals. Caution is advised.",
	"RSI suggests a possible reversal. Watch volume for confirmation.",
	"Uptrend confirmed by the indicators. Consider long positions with a stop-loss.",
	"Market is consolidating. Wait for a breakout to set direction.",
	"Oversold conditions detected. Look for buying opportunities near support.",
	"High volatility observed. Size positions accordingly.",
	"Positive momentum confirmed. Let winning positions run.",
	"Bearish divergence on the indicators. Consider protecting profits.",
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// DemoReply returns a canned answer chosen deterministically from msg.
func DemoReply(msg string) string {
	lower := strings.ToLower(msg)
	h := hashOf(lower)
	switch {
	case strings.Contains(lower, "rsi"):
		zone := "oversold"
		if h%2 == 1 {
			zone = "overbought"
		}
		return "RSI indicates " + zone + ". Adjust your strategy to the support and resistance levels."
	case strings.Contains(lower, "btc") || strings.Contains(lower, "bitcoin"):
		tone := "strength"
		if h%2 == 1 {
			tone = "weakness"
		}
		return fmt.Sprintf("Bitcoin is showing relative %s. Watch $%d as a key level.", tone, 40000+h%20000)
	}
	return demoReplies[h%uint32(len(demoReplies))]
}

// demoAnalysis answers from the snapshot itself.
func demoAnalysis(ti model.TechnicalIndicators) string {
	var advice string
	switch ti.Overall.Recommendation {
	case model.RecommendStrongBuy:
		advice = "Indicators agree on upside momentum. Consider scaling into longs with a stop below the support band."
	case model.RecommendBuy:
		advice = "Bias is bullish but not unanimous. Favor small long positions and wait for confirmation."
	case model.RecommendStrongSell:
		advice = "Indicators agree on downside momentum. Consider reducing exposure or hedging."
	case model.RecommendSell:
		advice = "Bias is bearish but not unanimous. Tighten stops on open longs."
	default:
		advice = "No clear direction. Wait for the band or the oscillators to break out."
	}
	return indicator.Summary(ti) + "\n\n" + advice
}
