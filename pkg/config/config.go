package config

import (
	"time"
)

type Server struct {
	Scheme          string        `envconfig:"SCHEME" default:"http"`
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"3000" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text" validate:"oneof=text json logfmt"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[fxdate]"`
}

type ExchangeRateProvider struct {
	Driver       string        `envconfig:"DRIVER" default:"http" validate:"oneof=http mock"`
	URL          string        `envconfig:"URL" default:"https://api.exchangeratesapi.io/v1" validate:"required_if=Driver http,omitempty,url"`
	APIKey       string        `envconfig:"API_KEY"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
}

type ExchangeRateCache struct {
	Driver     string        `envconfig:"DRIVER" default:"memory" validate:"oneof=memory redis"`
	TTL        time.Duration `envconfig:"TTL" default:"0s"`
	MaxEntries int           `envconfig:"MAX_ENTRIES" default:"512" validate:"min=0"`
	Prefix     string        `envconfig:"PREFIX" default:"fxdate:rates:"`
}

type Redis struct {
	URL string `envconfig:"URL" default:"redis://localhost:6379/0"`
}

type Preferences struct {
	Driver string `envconfig:"DRIVER" default:"badger" validate:"oneof=memory badger sqlite postgres"`
	Path   string `envconfig:"PATH" default:"./data/preferences"`
	DSN    string `envconfig:"DSN"`
}

type EventBus struct {
	Driver      string `envconfig:"DRIVER" default:"memory" validate:"oneof=memory redis kafka"`
	Brokers     string `envconfig:"BROKERS" default:"localhost:9092"`
	TopicPrefix string `envconfig:"TOPIC_PREFIX" default:"fxdate.events"`
	GroupID     string `envconfig:"GROUP_ID" default:"fxdate"`
	Stream      string `envconfig:"STREAM" default:"fxdate:events"`
}

type Warmer struct {
	Enabled  bool     `envconfig:"ENABLED" default:"true"`
	Schedule string   `envconfig:"SCHEDULE" default:"@every 6h"`
	Bases    []string `envconfig:"BASES" default:"CAD"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Sessions struct {
	MaxSessions int           `envconfig:"MAX_SESSIONS" default:"10000" validate:"min=0"`
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT" default:"30m"`
}

type App struct {
	Env                  string                `envconfig:"APP_ENV" default:"development"`
	Server               *Server               `envconfig:"SERVER"`
	Log                  *Log                  `envconfig:"LOG"`
	ExchangeRateProvider *ExchangeRateProvider `envconfig:"EXCHANGE_RATE_PROVIDER"`
	ExchangeRateCache    *ExchangeRateCache    `envconfig:"EXCHANGE_RATE_CACHE"`
	Redis                *Redis                `envconfig:"REDIS"`
	Preferences          *Preferences          `envconfig:"PREFERENCES"`
	EventBus             *EventBus             `envconfig:"EVENTBUS"`
	Warmer               *Warmer               `envconfig:"WARMER"`
	RateLimit            *RateLimit            `envconfig:"RATE_LIMIT"`
	Sessions             *Sessions             `envconfig:"SESSIONS"`
}
