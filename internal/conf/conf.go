package conf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
)

// EnvPrefix is stripped from environment variables before they are offered
// to ${KEY} placeholders in the config file.
const EnvPrefix = "MODERATION_"

// Bootstrap is the root of the service configuration.
type Bootstrap struct {
	Server     *Server     `json:"server"`
	Data       *Data       `json:"data"`
	Moderation *Moderation `json:"moderation"`
	Log        *Log        `json:"log"`
}

type Server struct {
	HTTP *Transport `json:"http"`
	GRPC *Transport `json:"grpc"`
}

type Transport struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

type Data struct {
	// VerdictStore selects the image verdict backend: "postgres" or "memory".
	VerdictStore string    `json:"verdict_store"`
	Database     *Database `json:"database"`
	Redis        *Redis    `json:"redis"`
}

type Database struct {
	Driver      string `json:"driver"`
	Source      string `json:"source"`
	AutoMigrate bool   `json:"auto_migrate"`
	Pool        Pool   `json:"pool"`
}

type Pool struct {
	MaxOpenConns    int32    `json:"max_open_conns"`
	MinIdleConns    int32    `json:"min_idle_conns"`
	MaxConnLifetime Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime Duration `json:"max_conn_idle_time"`
}

type Redis struct {
	Enabled      bool     `json:"enabled"`
	Network      string   `json:"network"`
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	// CacheTTL bounds how long a verdict stays in Redis; Postgres stays authoritative.
	CacheTTL       Duration `json:"cache_ttl"`
	LocalCacheSize int      `json:"local_cache_size"`
	LocalCacheTTL  Duration `json:"local_cache_ttl"`
	Bloom          Bloom    `json:"bloom"`
}

type Bloom struct {
	Enabled bool   `json:"enabled"`
	Key     string `json:"key"`
	Bits    uint64 `json:"bits"`
	Hashes  uint   `json:"hashes"`
}

type Moderation struct {
	Document  string    `json:"document"`
	Origin    string    `json:"origin"`
	Interval  Duration  `json:"interval"`
	Text      Text      `json:"text"`
	Image     Image     `json:"image"`
	Blocklist Blocklist `json:"blocklist"`
	Memo      Memo      `json:"memo"`
}

type Text struct {
	// Backend is "openai", "guard" or "none".
	Backend   string   `json:"backend"`
	OpenAI    OpenAI   `json:"openai"`
	Guard     Guard    `json:"guard"`
	Timeout   Duration `json:"timeout"`
	RateLimit float64  `json:"rate_limit"`
	Burst     int      `json:"burst"`
	Breaker   Breaker  `json:"breaker"`
}

type OpenAI struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

type Guard struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

type Image struct {
	Enabled     bool     `json:"enabled"`
	BaseURL     string   `json:"base_url"`
	Threshold   float64  `json:"threshold"`
	Timeout     Duration `json:"timeout"`
	Concurrency int      `json:"concurrency"`
	RateLimit   float64  `json:"rate_limit"`
	Burst       int      `json:"burst"`
	Breaker     Breaker  `json:"breaker"`
}

type Breaker struct {
	MaxRequests         uint32   `json:"max_requests"`
	Interval            Duration `json:"interval"`
	Timeout             Duration `json:"timeout"`
	ConsecutiveFailures uint32   `json:"consecutive_failures"`
}

type Blocklist struct {
	Words []string `json:"words"`
}

type Memo struct {
	Enabled bool     `json:"enabled"`
	Size    int      `json:"size"`
	TTL     Duration `json:"ttl"`
}

type Log struct {
	Level string `json:"level"`
}

// Duration is a time.Duration that decodes from Go duration strings ("10s")
// or from integer seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration: %s", b)
		}
		s = n.String() + "s"
	}
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Load reads the YAML config at path (file or directory), resolves ${KEY}
// placeholders from MODERATION_-prefixed environment variables and applies
// defaults.
func Load(path string) (*Bootstrap, error) {
	c := config.New(
		config.WithSource(
			file.NewSource(path),
			env.NewSource(EnvPrefix),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	bc.SetDefaults()
	if err := bc.Validate(); err != nil {
		return nil, err
	}
	return &bc, nil
}

// SetDefaults fills every unset field with its production default.
func (b *Bootstrap) SetDefaults() {
	if b.Server == nil {
		b.Server = &Server{}
	}
	if b.Server.HTTP == nil {
		b.Server.HTTP = &Transport{}
	}
	if b.Server.HTTP.Addr == "" {
		b.Server.HTTP.Addr = "0.0.0.0:8000"
	}
	if b.Server.HTTP.Timeout == 0 {
		b.Server.HTTP.Timeout = Duration(5 * time.Second)
	}
	if b.Server.GRPC == nil {
		b.Server.GRPC = &Transport{}
	}
	if b.Server.GRPC.Addr == "" {
		b.Server.GRPC.Addr = "0.0.0.0:9000"
	}
	if b.Server.GRPC.Timeout == 0 {
		b.Server.GRPC.Timeout = Duration(5 * time.Second)
	}

	if b.Data == nil {
		b.Data = &Data{}
	}
	if b.Data.VerdictStore == "" {
		b.Data.VerdictStore = "postgres"
	}
	if b.Data.Database == nil {
		b.Data.Database = &Database{}
	}
	if b.Data.Database.Driver == "" {
		b.Data.Database.Driver = "postgres"
	}
	if b.Data.Redis == nil {
		b.Data.Redis = &Redis{}
	}
	r := b.Data.Redis
	if r.Network == "" {
		r.Network = "tcp"
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = Duration(24 * time.Hour)
	}
	if r.LocalCacheSize == 0 {
		r.LocalCacheSize = 10000
	}
	if r.LocalCacheTTL == 0 {
		r.LocalCacheTTL = Duration(time.Minute)
	}
	if r.Bloom.Key == "" {
		r.Bloom.Key = "moderation:images:bloom"
	}
	if r.Bloom.Bits == 0 {
		r.Bloom.Bits = 1 << 24
	}
	if r.Bloom.Hashes == 0 {
		r.Bloom.Hashes = 7
	}

	if b.Moderation == nil {
		b.Moderation = &Moderation{}
	}
	m := b.Moderation
	if m.Document == "" {
		m.Document = "main"
	}
	if m.Origin == "" {
		m.Origin = "moderation"
	}
	if m.Interval == 0 {
		m.Interval = Duration(10 * time.Second)
	}
	if m.Text.Backend == "" {
		m.Text.Backend = "openai"
	}
	if m.Text.OpenAI.Model == "" {
		m.Text.OpenAI.Model = "omni-moderation-latest"
	}
	if m.Text.Guard.Model == "" {
		m.Text.Guard.Model = "Qwen/Qwen3Guard-Gen-0.6B"
	}
	if m.Text.Guard.MaxTokens == 0 {
		m.Text.Guard.MaxTokens = 128
	}
	if m.Text.Timeout == 0 {
		m.Text.Timeout = Duration(10 * time.Second)
	}
	if m.Text.RateLimit == 0 {
		m.Text.RateLimit = 20
	}
	if m.Text.Burst == 0 {
		m.Text.Burst = 10
	}
	m.Text.Breaker.setDefaults()
	if m.Image.Threshold == 0 {
		m.Image.Threshold = 0.5
	}
	if m.Image.Timeout == 0 {
		m.Image.Timeout = Duration(15 * time.Second)
	}
	if m.Image.Concurrency == 0 {
		m.Image.Concurrency = 4
	}
	if m.Image.RateLimit == 0 {
		m.Image.RateLimit = 10
	}
	if m.Image.Burst == 0 {
		m.Image.Burst = 5
	}
	m.Image.Breaker.setDefaults()
	if m.Memo.Size == 0 {
		m.Memo.Size = 1024
	}
	if m.Memo.TTL == 0 {
		m.Memo.TTL = Duration(10 * time.Minute)
	}

	if b.Log == nil {
		b.Log = &Log{}
	}
	if b.Log.Level == "" {
		b.Log.Level = "info"
	}
}

func (br *Breaker) setDefaults() {
	if br.MaxRequests == 0 {
		br.MaxRequests = 1
	}
	if br.Interval == 0 {
		br.Interval = Duration(time.Minute)
	}
	if br.Timeout == 0 {
		br.Timeout = Duration(30 * time.Second)
	}
	if br.ConsecutiveFailures == 0 {
		br.ConsecutiveFailures = 5
	}
}

// Validate rejects configurations the service cannot start with.
func (b *Bootstrap) Validate() error {
	switch b.Data.VerdictStore {
	case "postgres":
		if b.Data.Database.Source == "" {
			return fmt.Errorf("data.database.source is required for the postgres verdict store")
		}
	case "memory":
	default:
		return fmt.Errorf("data.verdict_store: unknown value %q", b.Data.VerdictStore)
	}
	switch b.Moderation.Text.Backend {
	case "openai", "guard", "none":
	default:
		return fmt.Errorf("moderation.text.backend: unknown value %q", b.Moderation.Text.Backend)
	}
	if b.Moderation.Text.Backend == "guard" && b.Moderation.Text.Guard.BaseURL == "" {
		return fmt.Errorf("moderation.text.guard.base_url is required for the guard backend")
	}
	if b.Moderation.Image.Enabled && b.Moderation.Image.BaseURL == "" {
		return fmt.Errorf("moderation.image.base_url is required when image moderation is enabled")
	}
	if b.Moderation.Interval.Std() < time.Second {
		return fmt.Errorf("moderation.interval must be at least 1s")
	}
	return nil
}
