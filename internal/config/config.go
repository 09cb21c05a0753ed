package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
)

// Config holds the full application configuration.
type Config struct {
	App         AppConfig         `json:"app"`
	MySQL       MySQLConfig       `json:"mysql"`
	Redis       RedisConfig       `json:"redis"`
	Browser     BrowserConfig     `json:"browser"`
	Scraper     ScraperConfig     `json:"scraper"`
	Marketplace MarketplaceConfig `json:"marketplace"`
	Profit      ProfitConfig      `json:"profit"`
	Search      SearchConfig      `json:"search"`
	Email       EmailConfig       `json:"email"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env      string `json:"env"`       // local / prod
	LogLevel string `json:"log_level"` // debug / info / warn / error
	HTTPAddr string `json:"http_addr"` // API listen address
}

// MySQLConfig holds database settings.
type MySQLConfig struct {
	DSN string `json:"dsn"`
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
}

// BrowserConfig controls the shared headless browser.
type BrowserConfig struct {
	BinPath        string        `json:"bin_path"`        // browser executable, downloaded when empty
	Headless       bool          `json:"headless"`        //
	MaxConcurrency int           `json:"max_concurrency"` // max simultaneous pages
	PageTimeout    time.Duration `json:"page_timeout"`    // hard per-navigation timeout
	ViewportWidth  int           `json:"viewport_width"`  //
	ViewportHeight int           `json:"viewport_height"` //
}

// ScraperConfig controls pacing and retry behaviour of page fetches.
type ScraperConfig struct {
	MinDelay        time.Duration `json:"min_delay"`         // lower bound of randomized pre-navigation delay
	MaxDelay        time.Duration `json:"max_delay"`         // upper bound
	MaxRetries      int           `json:"max_retries"`       // transient-error retries per fetch
	RetryDelay      time.Duration `json:"retry_delay"`       // initial backoff, doubled each attempt
	ScrollPasses    int           `json:"scroll_passes"`     // simulated scrolls per listing page
	ScrollMinPixels int           `json:"scroll_min_pixels"` //
	ScrollMaxPixels int           `json:"scroll_max_pixels"` //
	UserAgents      []string      `json:"user_agents"`       // identity rotation pool
	DedupWindow     time.Duration `json:"dedup_window"`      // observation dedup TTL, 0 disables
}

// MarketplaceConfig holds resale-marketplace credentials and limits.
type MarketplaceConfig struct {
	EBayClientID     string  `json:"ebay_client_id"`
	EBayClientSecret string  `json:"ebay_client_secret"`
	EBayEndpoint     string  `json:"ebay_endpoint"`
	EBayTokenURL     string  `json:"ebay_token_url"`
	AmazonSearchURL  string  `json:"amazon_search_url"`
	RequestsPerSec   float64 `json:"requests_per_sec"` // token-bucket refill rate per marketplace
	Burst            float64 `json:"burst"`            // token-bucket capacity
	UPCResultLimit   int     `json:"upc_result_limit"`
	NameResultLimit  int     `json:"name_result_limit"`
}

// ProfitConfig holds the fee model and profitability thresholds.
type ProfitConfig struct {
	SalesTaxRate     float64            `json:"sales_tax_rate"`
	ShippingEstimate float64            `json:"shipping_estimate"`
	MinProfitAmount  float64            `json:"min_profit_amount"`
	MinProfitMargin  float64            `json:"min_profit_margin"` // decimal, 0.20 = 20%
	AmazonFeePercent float64            `json:"amazon_fee_percent"`
	EBayFeePercent   float64            `json:"ebay_fee_percent"`
	PaymentFeeRate   float64            `json:"payment_fee_rate"`
	PaymentFeeFixed  float64            `json:"payment_fee_fixed"`
	CategoryRates    map[string]float64 `json:"category_rates"` // referral-rate overrides by category
}

// EmailConfig holds SMTP settings for opportunity alerts. Alerts stay
// off until host, from and to are all set.
type EmailConfig struct {
	SMTPHost      string  `json:"smtp_host"`
	SMTPPort      int     `json:"smtp_port"`
	SMTPUser      string  `json:"smtp_user"`
	SMTPPassword  string  `json:"smtp_password"`
	FromEmail     string  `json:"from_email"`
	ToEmail       string  `json:"to_email"`
	AlertMinScore float64 `json:"alert_min_score"` // alert only at or above this score
}

// SearchConfig bounds a single arbitrage search.
type SearchConfig struct {
	DefaultRadius  int      `json:"default_radius"` // miles
	MaxRadius      int      `json:"max_radius"`
	Retailers      []string `json:"retailers"`
	WorkerPoolSize int      `json:"worker_pool_size"` // concurrent store jobs
	QueueCapacity  int      `json:"queue_capacity"`
	StaleItemAge   time.Duration `json:"stale_item_age"` // inventory rows older than this are deactivated
}

// Load reads configuration from a JSON file, applies defaults for
// unset fields and lets environment variables override everything.
// A missing file is not an error; defaults plus environment apply.
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration populated with the built-in
// defaults, without touching the filesystem or the environment.
func Default() *Config {
	return getDefaultConfig()
}

// Save writes the configuration to a JSON file.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects explicitly invalid values. Unset fields were
// already defaulted; a value that survived defaulting and is still
// out of range was set deliberately and must not be papered over.
func (c *Config) Validate() error {
	if c.Search.DefaultRadius < 5 || c.Search.DefaultRadius > c.Search.MaxRadius {
		return &errs.ConfigurationError{
			Field:  "search.default_radius",
			Reason: fmt.Sprintf("must be within [5, %d], got %d", c.Search.MaxRadius, c.Search.DefaultRadius),
		}
	}
	if c.Profit.MinProfitAmount < 0 {
		return &errs.ConfigurationError{
			Field:  "profit.min_profit_amount",
			Reason: "must not be negative",
		}
	}
	if c.Profit.MinProfitMargin < 0 || c.Profit.MinProfitMargin > 1 {
		return &errs.ConfigurationError{
			Field:  "profit.min_profit_margin",
			Reason: "must be a decimal within [0, 1]",
		}
	}
	if c.Profit.SalesTaxRate < 0 || c.Profit.SalesTaxRate > 1 {
		return &errs.ConfigurationError{
			Field:  "profit.sales_tax_rate",
			Reason: "must be a decimal within [0, 1]",
		}
	}
	if c.Scraper.MinDelay > c.Scraper.MaxDelay {
		return &errs.ConfigurationError{
			Field:  "scraper.min_delay",
			Reason: "must not exceed scraper.max_delay",
		}
	}
	if c.Scraper.MaxRetries < 0 {
		return &errs.ConfigurationError{
			Field:  "scraper.max_retries",
			Reason: "must not be negative",
		}
	}
	for _, r := range c.Search.Retailers {
		switch r {
		case "walmart", "homedepot":
		default:
			return &errs.ConfigurationError{
				Field:  "search.retailers",
				Reason: fmt.Sprintf("unsupported retailer %q", r),
			}
		}
	}
	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "local",
			LogLevel: "info",
			HTTPAddr: ":8080",
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/arbitrage?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Browser: BrowserConfig{
			BinPath:        "",
			Headless:       true,
			MaxConcurrency: 3,
			PageTimeout:    30 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Scraper: ScraperConfig{
			MinDelay:        2 * time.Second,
			MaxDelay:        5 * time.Second,
			MaxRetries:      3,
			RetryDelay:      1 * time.Second,
			ScrollPasses:    3,
			ScrollMinPixels: 300,
			ScrollMaxPixels: 800,
			UserAgents:      defaultUserAgents(),
			DedupWindow:     1 * time.Hour,
		},
		Marketplace: MarketplaceConfig{
			EBayEndpoint:    "https://api.ebay.com/buy/browse/v1/item_summary/search",
			EBayTokenURL:    "https://api.ebay.com/identity/v1/oauth2/token",
			AmazonSearchURL: "https://www.amazon.com/s",
			RequestsPerSec:  1,
			Burst:           2,
			UPCResultLimit:  10,
			NameResultLimit: 5,
		},
		Profit: ProfitConfig{
			SalesTaxRate:     0.08,
			ShippingEstimate: 5.00,
			MinProfitAmount:  5.00,
			MinProfitMargin:  0.20,
			AmazonFeePercent: 0.15,
			EBayFeePercent:   0.13,
			PaymentFeeRate:   0.029,
			PaymentFeeFixed:  0.30,
			CategoryRates: map[string]float64{
				"Electronics":   0.15,
				"Home & Garden": 0.15,
				"Toys":          0.15,
				"Clothing":      0.17,
				"Books":         0.15,
				"Other":         0.15,
			},
		},
		Search: SearchConfig{
			DefaultRadius:  20,
			MaxRadius:      50,
			Retailers:      []string{"walmart", "homedepot"},
			WorkerPoolSize: 4,
			QueueCapacity:  64,
			StaleItemAge:   7 * 24 * time.Hour,
		},
		Email: EmailConfig{
			SMTPPort:      587,
			AlertMinScore: 60,
		},
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
	}
}

// applyDefaults fills fields left zero by the config file.
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Browser.MaxConcurrency == 0 {
		cfg.Browser.MaxConcurrency = defaults.Browser.MaxConcurrency
	}
	if cfg.Browser.PageTimeout == 0 {
		cfg.Browser.PageTimeout = defaults.Browser.PageTimeout
	}
	if cfg.Browser.ViewportWidth == 0 {
		cfg.Browser.ViewportWidth = defaults.Browser.ViewportWidth
	}
	if cfg.Browser.ViewportHeight == 0 {
		cfg.Browser.ViewportHeight = defaults.Browser.ViewportHeight
	}
	if cfg.Scraper.MinDelay == 0 {
		cfg.Scraper.MinDelay = defaults.Scraper.MinDelay
	}
	if cfg.Scraper.MaxDelay == 0 {
		cfg.Scraper.MaxDelay = defaults.Scraper.MaxDelay
	}
	if cfg.Scraper.MaxRetries == 0 {
		cfg.Scraper.MaxRetries = defaults.Scraper.MaxRetries
	}
	if cfg.Scraper.RetryDelay == 0 {
		cfg.Scraper.RetryDelay = defaults.Scraper.RetryDelay
	}
	if cfg.Scraper.ScrollPasses == 0 {
		cfg.Scraper.ScrollPasses = defaults.Scraper.ScrollPasses
	}
	if cfg.Scraper.ScrollMinPixels == 0 {
		cfg.Scraper.ScrollMinPixels = defaults.Scraper.ScrollMinPixels
	}
	if cfg.Scraper.ScrollMaxPixels == 0 {
		cfg.Scraper.ScrollMaxPixels = defaults.Scraper.ScrollMaxPixels
	}
	if len(cfg.Scraper.UserAgents) == 0 {
		cfg.Scraper.UserAgents = defaults.Scraper.UserAgents
	}
	if cfg.Scraper.DedupWindow == 0 {
		cfg.Scraper.DedupWindow = defaults.Scraper.DedupWindow
	}
	if cfg.Marketplace.EBayEndpoint == "" {
		cfg.Marketplace.EBayEndpoint = defaults.Marketplace.EBayEndpoint
	}
	if cfg.Marketplace.EBayTokenURL == "" {
		cfg.Marketplace.EBayTokenURL = defaults.Marketplace.EBayTokenURL
	}
	if cfg.Marketplace.AmazonSearchURL == "" {
		cfg.Marketplace.AmazonSearchURL = defaults.Marketplace.AmazonSearchURL
	}
	if cfg.Marketplace.RequestsPerSec == 0 {
		cfg.Marketplace.RequestsPerSec = defaults.Marketplace.RequestsPerSec
	}
	if cfg.Marketplace.Burst == 0 {
		cfg.Marketplace.Burst = defaults.Marketplace.Burst
	}
	if cfg.Marketplace.UPCResultLimit == 0 {
		cfg.Marketplace.UPCResultLimit = defaults.Marketplace.UPCResultLimit
	}
	if cfg.Marketplace.NameResultLimit == 0 {
		cfg.Marketplace.NameResultLimit = defaults.Marketplace.NameResultLimit
	}
	if cfg.Profit.SalesTaxRate == 0 {
		cfg.Profit.SalesTaxRate = defaults.Profit.SalesTaxRate
	}
	if cfg.Profit.ShippingEstimate == 0 {
		cfg.Profit.ShippingEstimate = defaults.Profit.ShippingEstimate
	}
	if cfg.Profit.MinProfitAmount == 0 {
		cfg.Profit.MinProfitAmount = defaults.Profit.MinProfitAmount
	}
	if cfg.Profit.MinProfitMargin == 0 {
		cfg.Profit.MinProfitMargin = defaults.Profit.MinProfitMargin
	}
	if cfg.Profit.AmazonFeePercent == 0 {
		cfg.Profit.AmazonFeePercent = defaults.Profit.AmazonFeePercent
	}
	if cfg.Profit.EBayFeePercent == 0 {
		cfg.Profit.EBayFeePercent = defaults.Profit.EBayFeePercent
	}
	if cfg.Profit.PaymentFeeRate == 0 {
		cfg.Profit.PaymentFeeRate = defaults.Profit.PaymentFeeRate
	}
	if cfg.Profit.PaymentFeeFixed == 0 {
		cfg.Profit.PaymentFeeFixed = defaults.Profit.PaymentFeeFixed
	}
	if len(cfg.Profit.CategoryRates) == 0 {
		cfg.Profit.CategoryRates = defaults.Profit.CategoryRates
	}
	if cfg.Search.DefaultRadius == 0 {
		cfg.Search.DefaultRadius = defaults.Search.DefaultRadius
	}
	if cfg.Search.MaxRadius == 0 {
		cfg.Search.MaxRadius = defaults.Search.MaxRadius
	}
	if len(cfg.Search.Retailers) == 0 {
		cfg.Search.Retailers = defaults.Search.Retailers
	}
	if cfg.Search.WorkerPoolSize == 0 {
		cfg.Search.WorkerPoolSize = defaults.Search.WorkerPoolSize
	}
	if cfg.Search.QueueCapacity == 0 {
		cfg.Search.QueueCapacity = defaults.Search.QueueCapacity
	}
	if cfg.Search.StaleItemAge == 0 {
		cfg.Search.StaleItemAge = defaults.Search.StaleItemAge
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Email.AlertMinScore == 0 {
		cfg.Email.AlertMinScore = defaults.Email.AlertMinScore
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("ebay_client_id", "EBAY_CLIENT_ID")
	_ = viper.BindEnv("ebay_client_secret", "EBAY_CLIENT_SECRET")
	_ = viper.BindEnv("chrome_bin", "CHROME_BIN")
	_ = viper.BindEnv("smtp_password", "SMTP_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := os.Getenv("DB_HOST"); v != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := viper.GetString("chrome_bin"); v != "" {
		cfg.Browser.BinPath = v
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("BROWSER_MAX_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Browser.MaxConcurrency = i
		}
	}
	if v := os.Getenv("BROWSER_PAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Browser.PageTimeout = d
		}
	}

	if v := os.Getenv("SCRAPER_MIN_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scraper.MinDelay = d
		}
	}
	if v := os.Getenv("SCRAPER_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scraper.MaxDelay = d
		}
	}
	if v := os.Getenv("SCRAPER_MAX_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Scraper.MaxRetries = i
		}
	}

	if v := viper.GetString("ebay_client_id"); v != "" {
		cfg.Marketplace.EBayClientID = v
	}
	if v := viper.GetString("ebay_client_secret"); v != "" {
		cfg.Marketplace.EBayClientSecret = v
	}
	if v := os.Getenv("MARKETPLACE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Marketplace.RequestsPerSec = f
		}
	}

	if v := os.Getenv("PROFIT_MIN_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Profit.MinProfitAmount = f
		}
	}
	if v := os.Getenv("PROFIT_MIN_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Profit.MinProfitMargin = f
		}
	}
	if v := os.Getenv("PROFIT_SALES_TAX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Profit.SalesTaxRate = f
		}
	}

	if v := os.Getenv("SEARCH_DEFAULT_RADIUS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultRadius = i
		}
	}
	if v := os.Getenv("SEARCH_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Search.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_password"); v != "" {
		cfg.Email.SMTPPassword = v
	}
	if v := os.Getenv("ALERT_FROM_EMAIL"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("ALERT_TO_EMAIL"); v != "" {
		cfg.Email.ToEmail = v
	}

	if v := os.Getenv("SEARCH_RETAILERS"); v != "" {
		parts := strings.Split(v, ",")
		retailers := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				retailers = append(retailers, strings.ToLower(p))
			}
		}
		if len(retailers) > 0 {
			cfg.Search.Retailers = retailers
		}
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "arbitrage",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON accepts durations as strings ("30s", "2m").
func (b *BrowserConfig) UnmarshalJSON(data []byte) error {
	type Alias BrowserConfig
	aux := &struct {
		PageTimeout string `json:"page_timeout"`
		*Alias
	}{Alias: (*Alias)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PageTimeout != "" {
		d, err := time.ParseDuration(aux.PageTimeout)
		if err != nil {
			return fmt.Errorf("invalid page_timeout format: %w", err)
		}
		b.PageTimeout = d
	}
	return nil
}

// MarshalJSON renders durations as strings.
func (b BrowserConfig) MarshalJSON() ([]byte, error) {
	type Alias BrowserConfig
	return json.Marshal(&struct {
		PageTimeout string `json:"page_timeout"`
		*Alias
	}{
		PageTimeout: b.PageTimeout.String(),
		Alias:       (*Alias)(&b),
	})
}

// UnmarshalJSON accepts durations as strings.
func (s *ScraperConfig) UnmarshalJSON(data []byte) error {
	type Alias ScraperConfig
	aux := &struct {
		MinDelay    string `json:"min_delay"`
		MaxDelay    string `json:"max_delay"`
		RetryDelay  string `json:"retry_delay"`
		DedupWindow string `json:"dedup_window"`
		*Alias
	}{Alias: (*Alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	for _, f := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{aux.MinDelay, "min_delay", &s.MinDelay},
		{aux.MaxDelay, "max_delay", &s.MaxDelay},
		{aux.RetryDelay, "retry_delay", &s.RetryDelay},
		{aux.DedupWindow, "dedup_window", &s.DedupWindow},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// MarshalJSON renders durations as strings.
func (s ScraperConfig) MarshalJSON() ([]byte, error) {
	type Alias ScraperConfig
	return json.Marshal(&struct {
		MinDelay    string `json:"min_delay"`
		MaxDelay    string `json:"max_delay"`
		RetryDelay  string `json:"retry_delay"`
		DedupWindow string `json:"dedup_window"`
		*Alias
	}{
		MinDelay:    s.MinDelay.String(),
		MaxDelay:    s.MaxDelay.String(),
		RetryDelay:  s.RetryDelay.String(),
		DedupWindow: s.DedupWindow.String(),
		Alias:       (*Alias)(&s),
	})
}

// UnmarshalJSON accepts durations as strings.
func (s *SearchConfig) UnmarshalJSON(data []byte) error {
	type Alias SearchConfig
	aux := &struct {
		StaleItemAge string `json:"stale_item_age"`
		*Alias
	}{Alias: (*Alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.StaleItemAge != "" {
		d, err := time.ParseDuration(aux.StaleItemAge)
		if err != nil {
			return fmt.Errorf("invalid stale_item_age format: %w", err)
		}
		s.StaleItemAge = d
	}
	return nil
}

// MarshalJSON renders durations as strings.
func (s SearchConfig) MarshalJSON() ([]byte, error) {
	type Alias SearchConfig
	return json.Marshal(&struct {
		StaleItemAge string `json:"stale_item_age"`
		*Alias
	}{
		StaleItemAge: s.StaleItemAge.String(),
		Alias:        (*Alias)(&s),
	})
}
