package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	MKGAPIBaseURL  string
	MKGAPIToken    string
	MKGRateLimit   int
	MKGTimeoutMs   int
	MKGDryRun      bool
	AutoInject     bool

	DefaultAdministration string
	DefaultDebtorNumber   string
	DefaultRelationNumber string
	LiteMode              bool
	LiteCustomerDomain    string
	StrategicCustomers    []string
	ExtraCustomers        string

	// Protection thresholds. Business policy values, kept configurable on
	// purpose: nobody has ever written down where they come from.
	GroupSpreadAlertPct float64
	GroupSpreadHighPct  float64
	RunDriftAlertPct    float64
	RunDriftHighPct     float64
	UnitPriceCeiling    float64
	HighValuePattern    string
	LargeQtyThreshold   float64

	TraceEnabled bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MKGAPIBaseURL: getEnv("MKG_API_BASE_URL", "https://mkg.elcotec.nl/api/v1"),
		MKGAPIToken:   getEnv("MKG_API_TOKEN", ""),
		MKGRateLimit:  getEnvInt("MKG_RATE_LIMIT_RPS", 3),
		MKGTimeoutMs:  getEnvInt("MKG_TIMEOUT_MS", 30000),
		MKGDryRun:     getEnvBool("MKG_DRY_RUN", false),
		AutoInject:    getEnvBool("MKG_AUTO_INJECT", false),

		DefaultAdministration: getEnv("MKG_DEFAULT_ADMINISTRATION", "01"),
		DefaultDebtorNumber:   getEnv("MKG_DEFAULT_DEBTOR", "199999"),
		DefaultRelationNumber: getEnv("MKG_DEFAULT_RELATION", "9999"),
		LiteMode:              getEnvBool("LITE_MODE", false),
		LiteCustomerDomain:    getEnv("LITE_CUSTOMER_DOMAIN", ""),
		StrategicCustomers:    getEnvList("STRATEGIC_CUSTOMERS", "vdlgroep.com,nts-group.nl"),
		ExtraCustomers:        getEnv("EXTRA_CUSTOMERS", ""),

		GroupSpreadAlertPct: getEnvFloat("PRICE_GROUP_SPREAD_PCT", 5),
		GroupSpreadHighPct:  getEnvFloat("PRICE_GROUP_SPREAD_HIGH_PCT", 20),
		RunDriftAlertPct:    getEnvFloat("PRICE_RUN_DRIFT_PCT", 10),
		RunDriftHighPct:     getEnvFloat("PRICE_RUN_DRIFT_HIGH_PCT", 25),
		UnitPriceCeiling:    getEnvFloat("UNIT_PRICE_CEILING_EUR", 50000),
		HighValuePattern:    getEnv("HIGH_VALUE_ARTICLE_PATTERN", `^(?:89|9\d)\d*\.`),
		LargeQtyThreshold:   getEnvFloat("LARGE_QTY_THRESHOLD", 100),

		TraceEnabled: getEnvBool("TRACE", false),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
