package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/service"

	tele "gopkg.in/telebot.v3"
)

// CompositeReader returns the latest sentiment composite for a symbol.
type CompositeReader interface {
	LatestComposite(ctx context.Context, symbol string) (*domain.CompositeSnapshot, error)
}

// PredictionReader returns the latest prediction per model for a symbol.
type PredictionReader interface {
	ListLatestBySymbol(ctx context.Context, symbol, interval string) ([]domain.Prediction, error)
}

// Advisor answers free-form questions with market context.
type Advisor interface {
	Ask(ctx context.Context, chatID int64, userMessage string) (string, error)
}

// Deps collects the services the bot commands need. Nil fields disable the
// corresponding commands with a polite message instead of crashing.
type Deps struct {
	Prices      *service.PriceService
	Composites  CompositeReader
	Predictions PredictionReader
	Advisor     Advisor
}

func StartTelegramBot(deps Deps) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		symbol, errMsg := symbolArg(c.Args(), "/price BTC")
		if errMsg != "" {
			return c.Send(errMsg)
		}
		snapshot, err := deps.Prices.GetCurrentPrice(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f",
			symbol, snapshot.PriceUSD, snapshot.Change24hPct, snapshot.Volume24h,
		)
		return c.Send(msg)
	})

	b.Handle("/sentiment", func(c tele.Context) error {
		if deps.Composites == nil {
			return c.Send("Sentiment is not configured.")
		}
		symbol, errMsg := symbolArg(c.Args(), "/sentiment BTC")
		if errMsg != "" {
			return c.Send(errMsg)
		}
		snap, err := deps.Composites.LatestComposite(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching sentiment for %s: %v", symbol, err))
		}
		if snap == nil {
			return c.Send(fmt.Sprintf("No sentiment snapshot for %s yet.", symbol))
		}
		return c.Send(formatComposite(snap))
	})

	b.Handle("/predict", func(c tele.Context) error {
		if deps.Predictions == nil {
			return c.Send("Predictions are not configured.")
		}
		symbol, errMsg := symbolArg(c.Args(), "/predict BTC")
		if errMsg != "" {
			return c.Send(errMsg)
		}
		preds, err := deps.Predictions.ListLatestBySymbol(context.Background(), symbol, "1h")
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching predictions for %s: %v", symbol, err))
		}
		if len(preds) == 0 {
			return c.Send(fmt.Sprintf("No predictions for %s yet.", symbol))
		}
		return c.Send(formatPredictions(symbol, preds))
	})

	b.Handle("/ask", func(c tele.Context) error {
		if deps.Advisor == nil {
			return c.Send("The advisor is not configured.")
		}
		question := strings.TrimSpace(strings.Join(c.Args(), " "))
		if question == "" {
			return c.Send("Usage: /ask should I rotate out of ETH?")
		}
		reply, err := deps.Advisor.Ask(context.Background(), c.Chat().ID, question)
		if err != nil {
			return c.Send("The advisor is unavailable right now, try again shortly.")
		}
		return c.Send(reply)
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func symbolArg(args []string, usage string) (string, string) {
	supported := strings.Join(domain.SupportedSymbols, ", ")
	if len(args) == 0 {
		return "", fmt.Sprintf("Usage: %s\nSupported: %s", usage, supported)
	}
	symbol := strings.ToUpper(args[0])
	if !domain.IsSupportedSymbol(symbol) {
		return "", fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, supported)
	}
	return symbol, ""
}

func formatComposite(snap *domain.CompositeSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s sentiment (%s)\n", snap.Symbol, snap.Timestamp.UTC().Format("Jan 2 15:04 MST"))
	fmt.Fprintf(&sb, "Score: %+.2f  Confidence: %.2f\n", snap.Score, snap.Confidence)
	fmt.Fprintf(&sb, "Direction: %s  Risk: %d\n", strings.ToUpper(string(snap.Direction)), snap.Risk)
	if snap.FearGreed != nil {
		fmt.Fprintf(&sb, "Fear & Greed: %+.2f\n", *snap.FearGreed)
	}
	if snap.NewsScore != nil {
		fmt.Fprintf(&sb, "News: %+.2f\n", *snap.NewsScore)
	}
	if snap.SocialScore != nil {
		fmt.Fprintf(&sb, "Social: %+.2f\n", *snap.SocialScore)
	}
	if snap.AttentionScore != nil {
		fmt.Fprintf(&sb, "Attention: %+.2f\n", *snap.AttentionScore)
	}
	fmt.Fprintf(&sb, "Items: %d", snap.ItemCount)
	return sb.String()
}

func formatPredictions(symbol string, preds []domain.Prediction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s predictions (1h bars, 24h horizon)\n", symbol)
	for _, p := range preds {
		dir := "HOLD"
		switch p.Direction {
		case domain.DirectionLong:
			dir = "LONG"
		case domain.DirectionShort:
			dir = "SHORT"
		}
		fmt.Fprintf(&sb, "%s: P(up)=%.2f %s risk=%d\n", p.ModelKey, p.ProbUp, dir, p.Risk)
	}
	return strings.TrimRight(sb.String(), "\n")
}
