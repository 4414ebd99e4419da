package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken  string
	DatabaseURL       string
	RedisURL          string
	CoinGeckoPollSecs int

	SentimentPollSecs    int
	SentimentFeeds       []string
	SentimentSubreddits  []string
	SentimentMaxItems    int
	SentimentRetainDays  int
	AttentionWindowDays  int
	AttentionMinEditZ    float64
	CompositeSignalAbs   float64
	LLMScoringEnabled    bool
	LLMScoringBatchSize  int

	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	AdvisorMaxHistory int

	APIKey string

	MLEnabled         bool
	MLInterval        string
	MLTargetHours     int
	MLTrainWindowDays int
	MLInferPollSecs   int
	MLResolvePollSecs int
	MLTrainHourUTC    int
	MLLongThreshold   float64
	MLShortThreshold  float64
	MLMinTrainSamples int
	MLAnomalyFilter   bool
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.CoinGeckoPollSecs = envInt("COINGECKO_POLL_SECS", 60)

	cfg.SentimentPollSecs = envInt("SENTIMENT_POLL_SECS", 900)
	cfg.SentimentFeeds = envList("SENTIMENT_FEEDS", []string{
		"https://www.coindesk.com/arc/outboundfeeds/rss/",
		"https://cointelegraph.com/rss",
	})
	cfg.SentimentSubreddits = envList("SENTIMENT_SUBREDDITS", []string{
		"CryptoCurrency", "Bitcoin", "ethereum",
	})
	cfg.SentimentMaxItems = envInt("SENTIMENT_MAX_ITEMS", 50)
	cfg.SentimentRetainDays = envInt("SENTIMENT_RETAIN_DAYS", 30)
	cfg.AttentionWindowDays = envInt("ATTENTION_WINDOW_DAYS", 30)
	cfg.AttentionMinEditZ = envFloat("ATTENTION_MIN_EDIT_Z", 2.0)
	cfg.CompositeSignalAbs = envFloat("COMPOSITE_SIGNAL_ABS", 0.35)

	cfg.LLMScoringEnabled = envBool("LLM_SCORING_ENABLED")
	cfg.LLMScoringBatchSize = envInt("LLM_SCORING_BATCH_SIZE", 20)

	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLMAPIKey == "" {
		log.Println("Warning: LLM_API_KEY not set, advisor and LLM scoring will be disabled")
	}

	// A Groq or other OpenAI-compatible endpoint. Empty means api.openai.com.
	cfg.LLMBaseURL = strings.TrimSpace(os.Getenv("LLM_BASE_URL"))

	cfg.LLMModel = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if cfg.LLMModel == "" {
		cfg.LLMModel = "gpt-4o-mini"
	}

	cfg.AdvisorMaxHistory = envInt("ADVISOR_MAX_HISTORY", 20)

	// Protects the trigger endpoints. Empty disables auth.
	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))

	cfg.MLEnabled = envBool("ML_ENABLED")

	cfg.MLInterval = strings.TrimSpace(os.Getenv("ML_INTERVAL"))
	if cfg.MLInterval == "" {
		cfg.MLInterval = "1h"
	}

	cfg.MLTargetHours = envInt("ML_TARGET_HOURS", 24)
	cfg.MLTrainWindowDays = envInt("ML_TRAIN_WINDOW_DAYS", 90)
	cfg.MLInferPollSecs = envInt("ML_INFER_POLL_SECS", 900)
	cfg.MLResolvePollSecs = envInt("ML_RESOLVE_POLL_SECS", 1800)

	cfg.MLTrainHourUTC = 0
	if v := strings.TrimSpace(os.Getenv("ML_TRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.MLTrainHourUTC = n
		}
	}

	cfg.MLLongThreshold = envProb("ML_LONG_THRESHOLD", 0.55)
	cfg.MLShortThreshold = envProb("ML_SHORT_THRESHOLD", 0.45)
	cfg.MLMinTrainSamples = envInt("ML_MIN_TRAIN_SAMPLES", 1000)
	cfg.MLAnomalyFilter = envBool("ML_ANOMALY_FILTER")

	return cfg
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envProb(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			return n
		}
	}
	return def
}

func envBool(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
