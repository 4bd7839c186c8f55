package config

import "log"

// SchedulerConfig configures the daily summary job.
type SchedulerConfig struct {
	Enabled             bool   `env:"SUMMARY_ENABLED"       envDefault:"true"`
	SummaryCron         string `env:"SUMMARY_CRON"          envDefault:"0 6 * * *" validate:"required"`
	AnalyticsWebhookURL string `env:"ANALYTICS_WEBHOOK_URL" validate:"omitempty,url"`
	HealthchecksPingURL string `env:"HEALTHCHECKS_PING_URL" validate:"omitempty,url"`
}

// LoadSchedulerConfig reads the scheduler settings; invalid values disable
// the job.
func LoadSchedulerConfig() SchedulerConfig {
	cfg, err := parseSection[SchedulerConfig]()
	if err != nil {
		log.Printf("config: scheduler: %v; daily summary disabled", err)
		return SchedulerConfig{SummaryCron: "0 6 * * *"}
	}
	return cfg
}
