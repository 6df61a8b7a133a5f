package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string
	Mode            string
	FaucetEnabled   bool
	FaucetMax       string
	WelcomeCredit   string
	Symbols         []string
}

// defaultSymbols is the trading-station catalog used when SYMBOLS is unset:
// majors, a JPY cross, gold and the two large crypto pairs.
var defaultSymbols = []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "BTCUSDT", "ETHUSDT"}

func Load() (Config, error) {
	// Populate the environment from .env when present; real deployments
	// set the variables directly.
	_ = godotenv.Load()

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.Mode == "" {
		c.Mode = "development"
	}
	if c.Mode != "development" && c.Mode != "production" {
		return c, errors.New("invalid APP_MODE: use development or production")
	}
	faucetEnabled := os.Getenv("FAUCET_ENABLED")
	if faucetEnabled == "" {
		c.FaucetEnabled = true
	} else {
		b, err := strconv.ParseBool(faucetEnabled)
		if err != nil {
			return c, err
		}
		c.FaucetEnabled = b
	}
	max := os.Getenv("FAUCET_MAX")
	if max == "" {
		max = "100000"
	}
	c.FaucetMax = max
	welcome := os.Getenv("WELCOME_CREDIT")
	if welcome == "" {
		welcome = "10000"
	}
	c.WelcomeCredit = welcome
	symbols := strings.TrimSpace(os.Getenv("SYMBOLS"))
	if symbols == "" {
		c.Symbols = defaultSymbols
	} else {
		for _, s := range strings.Split(symbols, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				c.Symbols = append(c.Symbols, s)
			}
		}
		if len(c.Symbols) == 0 {
			return c, errors.New("SYMBOLS is set but empty")
		}
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
