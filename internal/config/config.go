package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"breathing_club_bot/internal/domain"
)

type Config struct {
	Mode     string
	Env      string
	LogLevel string
	Port     string

	BotToken    string
	BotUsername string
	BotDebug    bool
	AdminIDs    []int64
	SupportURL  string

	DB    DBConfig
	Redis RedisConfig

	ProdamusDomain    string
	ProdamusSecretKey string
	ProdamusSys       string
	ProductName       string
	PaymentToken      string
	ChannelID         int64
	ChannelInviteURL  string

	Tariffs []domain.Tariff

	ReminderDelay           time.Duration
	ExpiringReminderDays    int
	KickExpiredCron         string
	ExpiringReminderCron    string
	UnconvertedReminderCron string
	LessonReminderPoll      time.Duration

	ReferralBonusDays   int
	VideoReviewPromo    string
	VideoReviewDiscount int64

	OfferDocumentURL   string
	PrivacyDocumentURL string
	ConsentDocumentURL string
	LessonVideoFileID  string
	LessonVideoURL     string
	SadCatPhotoURL     string

	ExportS3 S3Config

	JaegerEndpoint   string
	TraceSampleRatio float64
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN возвращает строку подключения для lib/pq
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	StateTTL time.Duration
}

// Addr возвращает адрес host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Enabled проверяет, настроено ли архивирование выгрузок
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// NewConfig создает новую конфигурацию на основе переменных окружения
func NewConfig() *Config {
	mode := getenv("MODE", "production")

	cfg := &Config{
		Mode:     mode,
		Env:      getenv("ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Port:     getenv("PORT", "8080"),

		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotUsername: strings.TrimPrefix(os.Getenv("BOT_USERNAME"), "@"),
		BotDebug:    getenvBool("BOT_DEBUG", false),
		AdminIDs:    getenvInt64List("ADMIN_IDS"),
		SupportURL:  os.Getenv("SUPPORT_URL"),

		DB: DBConfig{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			User:     getenv("DB_USER", "postgres"),
			Password: getenv("DB_PASS", "postgres"),
			Name:     getenv("DB_NAME", "bot_db"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getenv("REDIS_HOST", "localhost"),
			Port:     getenv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASS"),
			DB:       getenvInt("REDIS_DB", 0),
			StateTTL: getenvDuration("STATE_TTL", 24*time.Hour),
		},

		ProdamusDomain:    os.Getenv("PRODAMUS_DOMAIN"),
		ProdamusSecretKey: os.Getenv("PRODAMUS_SECRET_KEY"),
		ProdamusSys:       getenv("PRODAMUS_SYS", "club-breathing"),
		ProductName:       getenv("PRODUCT_NAME", "Подписка на занятия"),
		PaymentToken:      os.Getenv("PAYMENT_TOKEN"),
		ChannelID:         getenvInt64("CHANNEL_ID", 0),
		ChannelInviteURL:  os.Getenv("CHANNEL_INVITE_URL"),

		Tariffs: []domain.Tariff{
			{Days: getenvInt("TARIFF_30_DAYS", 30), Price: getenvInt64("TARIFF_30_PRICE", 199000)},
			{Days: getenvInt("TARIFF_90_DAYS", 90), Price: getenvInt64("TARIFF_90_PRICE", 477000)},
			{Days: getenvInt("TARIFF_365_DAYS", 365), Price: getenvInt64("TARIFF_365_PRICE", 1590000)},
		},

		ReminderDelay:           time.Duration(getenvInt("REMINDER_DELAY_SECONDS", 600)) * time.Second,
		ExpiringReminderDays:    getenvInt("EXPIRING_REMINDER_DAYS", 3),
		KickExpiredCron:         getenv("KICK_EXPIRED_CRON", "0 0 * * *"),
		ExpiringReminderCron:    getenv("EXPIRING_REMINDER_CRON", "0 10 * * *"),
		UnconvertedReminderCron: getenv("UNCONVERTED_REMINDER_CRON", "0 * * * *"),
		LessonReminderPoll:      getenvDuration("LESSON_REMINDER_POLL", time.Minute),

		ReferralBonusDays:   getenvInt("REFERRAL_BONUS_DAYS", 30),
		VideoReviewPromo:    domain.NormalizePromocode(getenv("VIDEO_REVIEW_PROMO", "VIDEOOTZIV")),
		VideoReviewDiscount: getenvInt64("VIDEO_REVIEW_DISCOUNT", 50000),

		OfferDocumentURL:   getenv("OFFER_DOCUMENT_URL", "https://example.com/offer.pdf"),
		PrivacyDocumentURL: getenv("PRIVACY_DOCUMENT_URL", "https://example.com/privacy.pdf"),
		ConsentDocumentURL: getenv("CONSENT_DOCUMENT_URL", "https://example.com/consent.pdf"),
		LessonVideoFileID:  os.Getenv("LESSON_VIDEO_FILE_ID"),
		LessonVideoURL:     os.Getenv("LESSON_VIDEO_URL"),
		SadCatPhotoURL:     os.Getenv("SAD_CAT_PHOTO_URL"),

		ExportS3: S3Config{
			Bucket:    os.Getenv("EXPORT_S3_BUCKET"),
			Region:    getenv("EXPORT_S3_REGION", "ru-central1"),
			Endpoint:  os.Getenv("EXPORT_S3_ENDPOINT"),
			AccessKey: os.Getenv("EXPORT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("EXPORT_S3_SECRET_KEY"),
		},

		JaegerEndpoint:   os.Getenv("JAEGER_ENDPOINT"),
		TraceSampleRatio: getenvFloat("TRACE_SAMPLE_RATIO", 1),
	}

	// В режиме разработки все задачи планировщика гоняем часто
	if cfg.IsDevMode() {
		cfg.KickExpiredCron = getenv("KICK_EXPIRED_CRON", "*/5 * * * *")
		cfg.ExpiringReminderCron = getenv("EXPIRING_REMINDER_CRON", "*/5 * * * *")
		cfg.UnconvertedReminderCron = getenv("UNCONVERTED_REMINDER_CRON", "*/5 * * * *")
		cfg.LessonReminderPoll = getenvDuration("LESSON_REMINDER_POLL", 10*time.Second)
	}

	sort.Slice(cfg.Tariffs, func(i, j int) bool { return cfg.Tariffs[i].Days < cfg.Tariffs[j].Days })
	for i := range cfg.Tariffs {
		cfg.Tariffs[i].Title = TariffTitle(cfg.Tariffs[i].Days)
	}

	return cfg
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.ProdamusDomain == "" {
		missing = append(missing, "PRODAMUS_DOMAIN")
	}
	if c.ProdamusSecretKey == "" {
		missing = append(missing, "PRODAMUS_SECRET_KEY")
	}
	if c.ChannelID == 0 {
		missing = append(missing, "CHANNEL_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	for _, t := range c.Tariffs {
		if t.Days <= 0 || t.Price <= 0 {
			return fmt.Errorf("invalid tariff: days=%d price=%d", t.Days, t.Price)
		}
	}
	return nil
}

// IsDevMode проверяет, работает ли приложение в режиме разработки
func (c *Config) IsDevMode() bool {
	return c.Mode == "dev" || c.Mode == "development"
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FindTariff ищет тариф по количеству дней
func (c *Config) FindTariff(days int) (domain.Tariff, bool) {
	for _, t := range c.Tariffs {
		if t.Days == days {
			return t, true
		}
	}
	return domain.Tariff{}, false
}

// TariffTitle возвращает название тарифа для кнопок и описаний
func TariffTitle(days int) string {
	switch {
	case days == 30:
		return "1 месяц"
	case days == 90:
		return "3 месяца"
	case days == 180:
		return "6 месяцев"
	case days == 365:
		return "1 год"
	default:
		return fmt.Sprintf("%d дней", days)
	}
}

// getenv возвращает значение переменной окружения или значение по умолчанию
func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getenvInt возвращает целочисленное значение переменной окружения
func getenvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getenvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getenvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getenvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getenvDuration понимает как "90s", так и просто число секунд
func getenvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getenvInt64List разбирает список ID через запятую, некорректные значения пропускаются
func getenvInt64List(key string) []int64 {
	var result []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, id)
	}
	return result
}
