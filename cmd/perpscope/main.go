package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perpscope/perpscope/internal/bybit"
	"github.com/perpscope/perpscope/internal/config"
	"github.com/perpscope/perpscope/internal/dashboard"
	"github.com/perpscope/perpscope/internal/journal"
	"github.com/perpscope/perpscope/internal/logger"
	"github.com/perpscope/perpscope/internal/models"
	"github.com/perpscope/perpscope/internal/screener"
	"github.com/perpscope/perpscope/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	minScore   = flag.Float64("score", 0, "Minimum signal score (8, 12, or 16); prompts when omitted")
)

func main() {
	flag.Parse()

	// Tokens and keys may live in a local .env instead of the YAML.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *minScore != 0 {
		cfg.Screener.MinSignalScore = *minScore
	} else {
		cfg.Screener.MinSignalScore = promptSignalStrength(os.Stdin, os.Stdout)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var archive *journal.Journal
	if cfg.Journal.Enabled {
		archive, err = journal.Open(cfg.Journal.DBPath, cfg.Journal.MaxSignals)
		if err != nil {
			logger.Fatal("Failed to open signal journal: %v", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("Failed to close signal journal: %v", err)
			}
		}()
	}

	client := bybit.NewClient(
		cfg.Bybit.RESTURL,
		cfg.Bybit.Category,
		cfg.Bybit.Timeout,
		bybit.ClientConfig{
			MaxRetries:       cfg.Bybit.MaxRetries,
			RetryDelayBase:   cfg.Bybit.RetryDelayBase,
			MaxRequests:      cfg.Bybit.MaxRequests,
			RateLimitWindow:  cfg.Bybit.RateLimitWindow,
			RateSafetyFactor: cfg.Bybit.RateSafetyFactor,
		},
	)

	market := screener.New(screener.Config{
		BigTradeThreshold:        cfg.Screener.BigTradeThreshold,
		PriceChangeThreshold:     cfg.Screener.PriceChangeThreshold,
		VolumeSpikePct:           cfg.Screener.VolumeSpikePct,
		SignalCooldown:           cfg.Screener.SignalCooldown,
		TrendConfirmationPeriods: cfg.Screener.TrendConfirmationPeriods,
		CombinedSignalBonus:      cfg.Screener.CombinedSignalBonus,
		MinSignalScore:           cfg.Screener.MinSignalScore,
		CorrelationThreshold:     cfg.Screener.CorrelationThreshold,
		DirectionalBiasRequired:  cfg.Screener.DirectionalBiasRequired,
		TopCoinsLimit:            cfg.Screener.TopCoinsLimit,
		HistoryWindow:            cfg.Screener.HistoryWindow,
	})

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting screener (interval: %v, min_score: %.0f, top_coins: %d)",
		cfg.Bybit.UpdateInterval,
		cfg.Screener.MinSignalScore,
		cfg.Screener.TopCoinsLimit,
	)

	notified := make(map[string]bool)

	logger.Debug("Fetching initial market data")
	if err := fetchInitialData(ctx, client, market, cfg); err != nil {
		logger.Fatal("Failed to fetch initial data: %v", err)
	}

	if cfg.Bybit.WSEnabled {
		startStream(ctx, market, cfg)
	}

	if cfg.Dashboard.Enabled {
		dash := dashboard.New(market, cfg.Dashboard.RefreshRate, cfg.Screener.TopCoinsLimit)
		go dash.Run(ctx)
	}

	ticker := time.NewTicker(cfg.Bybit.UpdateInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Scan cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Screener stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			handleCycleResult(runScanCycle(ctx, client, market, archive, telegramClient, cfg, notified))
		}
	}
}

// promptSignalStrength asks for the minimum score tier on startup.
func promptSignalStrength(in *os.File, out *os.File) float64 {
	fmt.Fprintln(out, "\nSelect minimum signal strength level:")
	fmt.Fprintln(out, "1. Low (Score >= 8)")
	fmt.Fprintln(out, "2. Moderate (Score >= 12)")
	fmt.Fprintln(out, "3. Strong (Score >= 16)")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nEnter your choice (1-3) [default=2]: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "Using Moderate signal strength (Score >= 12)")
			return 12.0
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "", "2":
			fmt.Fprintln(out, "Using Moderate signal strength (Score >= 12)")
			return 12.0
		case "1":
			fmt.Fprintln(out, "Using Low signal strength (Score >= 8)")
			return 8.0
		case "3":
			fmt.Fprintln(out, "Using Strong signal strength (Score >= 16)")
			return 16.0
		default:
			fmt.Fprintln(out, "Invalid choice. Please enter 1, 2, or 3.")
		}
	}
}

// fetchInitialData primes the aggregate with instruments, tickers, and
// recent trades for the top-volume subset before the first scan cycle.
func fetchInitialData(ctx context.Context, client *bybit.Client, market *screener.Market, cfg *config.Config) error {
	instruments, err := client.GetInstruments(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch instruments: %w", err)
	}
	market.UpdateInstruments(instruments)

	if err := refreshMarket(ctx, client, market, cfg); err != nil {
		return err
	}
	market.UpdateOpportunities()

	logger.Info("Initial data fetched successfully")
	return nil
}

// refreshMarket pulls a ticker snapshot plus recent-trade windows for the
// top-volume subset into the aggregate.
func refreshMarket(ctx context.Context, client *bybit.Client, market *screener.Market, cfg *config.Config) error {
	tickers, err := client.GetTickers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tickers: %w", err)
	}
	market.UpdateTickers(tickers)
	logger.Debug("Fetched %d tickers", len(tickers))

	for _, coin := range market.TopVolumeCoins(cfg.Screener.TopCoinsLimit) {
		trades, err := client.GetRecentTrades(ctx, coin.Symbol, cfg.Bybit.TradesLimit)
		if err != nil {
			logger.Warn("Failed to fetch recent trades for %s: %v", coin.Symbol, err)
			continue
		}
		market.UpdateRecentTrades(coin.Symbol, trades)
	}
	return nil
}

// runScanCycle executes one full poll-detect-notify cycle.
func runScanCycle(
	ctx context.Context,
	client *bybit.Client,
	market *screener.Market,
	archive *journal.Journal,
	telegramClient *telegram.Client,
	cfg *config.Config,
	notified map[string]bool,
) error {
	startTime := time.Now()
	logger.Debug("Starting scan cycle")

	if err := refreshMarket(ctx, client, market, cfg); err != nil {
		return err
	}

	opportunities := market.UpdateOpportunities()

	var fresh []models.Signal
	for _, s := range opportunities {
		if !s.HighQuality || notified[s.ID] {
			continue
		}
		notified[s.ID] = true
		fresh = append(fresh, s)

		if archive != nil {
			if err := archive.Record(s); err != nil {
				logger.Warn("Failed to journal signal %s: %v", s.ID, err)
			}
		}
	}

	if len(fresh) > 0 {
		logger.Info("Detected %d new high-quality signals", len(fresh))
		if cfg.Telegram.Enabled && telegramClient != nil {
			if err := telegramClient.Send(fresh); err != nil {
				logger.Error("Failed to send Telegram notification: %v", err)
			} else {
				logger.Info("Sent Telegram notification with %d signals", len(fresh))
			}
		}
	}

	logger.Debug("Scan cycle completed in %v", time.Since(startTime))
	return nil
}

// startStream opens the public websocket feed so last prices stay live
// between REST polls. Stream failures degrade to polling only.
func startStream(ctx context.Context, market *screener.Market, cfg *config.Config) {
	stream := bybit.NewStream(cfg.Bybit.WSURL, cfg.Bybit.WSPingInterval, func(topic string, data json.RawMessage) {
		symbol, ok := strings.CutPrefix(topic, "tickers.")
		if !ok {
			return
		}
		var tick struct {
			LastPrice string `json:"lastPrice"`
		}
		if err := json.Unmarshal(data, &tick); err != nil || tick.LastPrice == "" {
			return
		}
		price, err := strconv.ParseFloat(tick.LastPrice, 64)
		if err != nil {
			return
		}
		market.UpdateLastPrice(symbol, price)
	})

	if err := stream.Connect(); err != nil {
		logger.Warn("Websocket stream unavailable, falling back to polling: %v", err)
		return
	}

	symbols := make([]string, 0, cfg.Screener.TopCoinsLimit)
	for _, coin := range market.TopVolumeCoins(cfg.Screener.TopCoinsLimit) {
		symbols = append(symbols, coin.Symbol)
	}
	if err := stream.Subscribe(symbols); err != nil {
		logger.Warn("Websocket subscribe failed, falling back to polling: %v", err)
		stream.Close() //nolint:errcheck
		return
	}

	stream.Run(ctx)
	go func() {
		<-ctx.Done()
		stream.Close() //nolint:errcheck
	}()
}
