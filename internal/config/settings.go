package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultSourceURL points at the operator page with the hourly
// stabilization-outage schedules (not the street-address listing).
const DefaultSourceURL = "https://www.zoe.com.ua/%D0%B3%D1%80%D0%B0%D1%84%D1%96%D0%BA%D0%B8-%D0%BF%D0%BE%D0%B3%D0%BE%D0%B4%D0%B8%D0%BD%D0%BD%D0%B8%D1%85-%D1%81%D1%82%D0%B0%D0%B1%D1%96%D0%BB%D1%96%D0%B7%D0%B0%D1%86%D1%96%D0%B9%D0%BD%D0%B8%D1%85/"

const DefaultTimezone = "Europe/Kyiv"

const (
	DefaultNotifyAhead  = 30 * time.Minute
	DefaultPollInterval = 5 * time.Minute
	DefaultFetchTimeout = 15 * time.Second
)

// Settings is the immutable, fully-resolved engine configuration: durations
// parsed, timezone loaded, defaults applied. Constructed once at startup and
// passed to every component; engine logic never reads ambient config.
type Settings struct {
	SourceURL    string
	QueueInfoURL string

	NotifyAhead  time.Duration
	PollInterval time.Duration
	FetchTimeout time.Duration

	Location *time.Location
}

// Resolve validates the schedule section and produces engine settings.
func (c *Config) Resolve() (Settings, error) {
	s := Settings{
		SourceURL:    strings.TrimSpace(c.Schedule.SourceURL),
		QueueInfoURL: strings.TrimSpace(c.Schedule.QueueInfoURL),
	}
	if s.SourceURL == "" {
		s.SourceURL = DefaultSourceURL
	}
	if _, err := url.Parse(s.SourceURL); err != nil {
		return Settings{}, fmt.Errorf("schedule.source_url: %w", err)
	}

	var err error
	if s.NotifyAhead, err = ParseDurationOrDefault("schedule.notify_ahead", c.Schedule.NotifyAhead, DefaultNotifyAhead); err != nil {
		return Settings{}, err
	}
	if s.PollInterval, err = ParseDurationOrDefault("schedule.poll_interval", c.Schedule.PollInterval, DefaultPollInterval); err != nil {
		return Settings{}, err
	}
	if s.FetchTimeout, err = ParseDurationOrDefault("schedule.fetch_timeout", c.Schedule.FetchTimeout, DefaultFetchTimeout); err != nil {
		return Settings{}, err
	}

	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Settings{}, fmt.Errorf("schedule.timezone: unknown zone %q: %w", tz, err)
	}
	s.Location = loc

	return s, nil
}

// SourceLooksLikeAddressList reports whether the source URL points at the
// operator's street-address listing instead of the hourly schedule page.
// The bot still runs against it, but extraction will find nothing useful.
func (s Settings) SourceLooksLikeAddressList() bool {
	u := strings.ToLower(s.SourceURL)
	if strings.Contains(u, "перелік-адрес") {
		return true
	}
	dec, err := url.PathUnescape(u)
	if err != nil {
		return false
	}
	return strings.Contains(dec, "перелік-адрес")
}

// Validate checks the parts required to boot at all.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (config file or BOT_TOKEN env)")
	}
	if _, err := c.Resolve(); err != nil {
		return err
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}
