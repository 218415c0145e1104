package fanout

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// esc escapes text for safe interpolation into a MarkdownV2 message,
// leaving the surrounding literal markup (the *bold* markers themselves)
// untouched.
func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func escf(format string, a ...any) string {
	return esc(fmt.Sprintf(format, a...))
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// sideIcon and sideLabel follow the long/short convention used throughout
// §6.3 and the hourly digest: 🔴 for the long side, 🟢 for the short side.
func sideIcon(s model.Side) string {
	if s == model.ShortLiquidated {
		return "🟢"
	}
	return "🔴"
}

func sideLabel(s model.Side) string {
	if s == model.ShortLiquidated {
		return "Short"
	}
	return "Long"
}

// renderLiquidation formats a single event per §6.3's real-time template.
// Events crossing the whale threshold get a distinct prefix so they stand
// out in a busy chat.
func renderLiquidation(e model.LiquidationEvent) string {
	msg := fmt.Sprintf(
		"%s *#%s REKT %s:* %s at %s",
		sideIcon(e.Side), esc(e.Symbol), sideLabel(e.Side),
		esc(model.FormatUSD(e.Notional())), escf("$%.2f", e.Price),
	)
	if e.IsWhale() {
		msg = "🔥 *WHALE ALERT!* 🔥\n" + msg
	}
	return msg
}

// cascadeLabel renders §6.3's "Longs Rekt" / "Shorts Squeezed" cascade subtitle.
func cascadeLabel(s model.Side) string {
	if s == model.ShortLiquidated {
		return "Shorts Squeezed"
	}
	return "Longs Rekt"
}

// renderCascade formats a qualifying cascade bucket per §6.3's cascade template.
func renderCascade(a model.CascadeAlert) string {
	msg := fmt.Sprintf(
		"%s *CASCADE ALERT: %s*\n\n💀 *%s* (x%d orders)\n💰 Total Volume: *%s* in 10s\n📉 Range: %s - %s (%s%%)",
		sideIcon(a.Side), esc(a.Symbol), cascadeLabel(a.Side), a.Count,
		esc(model.FormatUSD(a.TotalVolume)),
		escf("$%.2f", a.MinPrice), escf("$%.2f", a.MaxPrice), escf("%.2f", a.PercentRange()),
	)
	if a.OpenInterestUSD > 0 {
		msg += fmt.Sprintf("\n📊 OI: $%sM", escf("%.2f", a.OpenInterestUSD/1_000_000))
	}
	return msg
}

// renderOISurge formats an open-interest surge per §6.3's OI alert template.
func renderOISurge(s model.OISurge) string {
	trendIcon, dirIcon, verb := "📈", "🟢", "INCREASED"
	if s.PercentChange < 0 {
		trendIcon, dirIcon, verb = "📉", "🔴", "DROPPED"
	}
	return fmt.Sprintf(
		"%s *OI ALERT: %s*\n\n%s Open Interest %s by *%s%%* in 15 min!\n\n💵 Price: %s\n💰 New OI: *$%sM*",
		trendIcon, esc(s.Symbol), dirIcon, verb,
		escf("%.2f", absFloat(s.PercentChange)),
		escf("$%.2f", s.Price), escf("%.2f", s.CurrentOI/1_000_000),
	)
}
