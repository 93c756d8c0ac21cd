// Package config loads the worker's nested TOML configuration document and
// layers environment overrides on top of it.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the root of the worker's configuration document.
type Config struct {
	Kafka  Kafka  `toml:"kafka"`
	Topics Topics `toml:"topics"`
	Search Search `toml:"search"`
	Hosts  Hosts  `toml:"hosts"`
	Worker Worker `toml:"worker"`
}

// Kafka holds broker connectivity settings.
type Kafka struct {
	Brokers      []string `toml:"brokers"`
	GroupID      string   `toml:"group_id"`
	SASLUsername string   `toml:"sasl_username"`
	SASLPassword string   `toml:"sasl_password"`
}

// Topics names the CDC source topic and its DLQ.
type Topics struct {
	SearchUsersChanges    string `toml:"search_users_changes"`
	SearchUsersChangesDLQ string `toml:"search_users_changes_dlq"`
}

// Search holds the Meilisearch-compatible engine's connection details.
type Search struct {
	Host             string   `toml:"host"`
	Endpoints        []string `toml:"endpoints"`
	APIKey           string   `toml:"api_key"`
	IndexUsernames   string   `toml:"index_usernames"`
	IndexUsernamesDLQ string  `toml:"index_usernames_dlq"`
}

// Hosts holds addresses for ambient HTTP surfaces this process exposes.
type Hosts struct {
	SearchMetrics string `toml:"search_metrics"`
}

// Worker holds tunables for the task pool and shutdown sequencing.
type Worker struct {
	MaxConcurrentTasks int           `toml:"max_concurrent_tasks"`
	CommitInterval     time.Duration `toml:"commit_interval"`
	DrainDeadline      time.Duration `toml:"drain_deadline"`
	PollInterval       time.Duration `toml:"poll_interval"`
	PollTimeout        time.Duration `toml:"poll_timeout"`
	DLQPublishTimeout  time.Duration `toml:"dlq_publish_timeout"`
}

// Defaults mirror the worker's field-tested tunables, applied before the
// file is decoded so an absent key falls back rather than zero-valuing.
func Defaults() Config {
	return Config{
		Worker: Worker{
			MaxConcurrentTasks: 100,
			CommitInterval:     time.Second,
			DrainDeadline:      60 * time.Second,
			PollInterval:       200 * time.Millisecond,
			PollTimeout:        15 * time.Second,
			DLQPublishTimeout:  time.Second,
		},
	}
}

// Load reads path as TOML into Defaults(), then applies SEARCH_WORKER_*
// environment overrides for the fields operators most commonly need to
// change per-deployment without editing the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "decoding config file %q", path)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("SEARCH_WORKER_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	if v, ok := os.LookupEnv("SEARCH_WORKER_KAFKA_GROUP_ID"); ok {
		cfg.Kafka.GroupID = v
	}
	if v, ok := os.LookupEnv("SEARCH_WORKER_SEARCH_API_KEY"); ok {
		cfg.Search.APIKey = v
	}
	if v, ok := os.LookupEnv("SEARCH_WORKER_MAX_CONCURRENT_TASKS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.MaxConcurrentTasks = n
		}
	}
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (c Config) validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty")
	}
	if c.Kafka.GroupID == "" {
		return errors.New("kafka.group_id must be set")
	}
	if c.Topics.SearchUsersChanges == "" {
		return errors.New("topics.search_users_changes must be set")
	}
	if len(c.Search.Endpoints) == 0 {
		return errors.New("search.endpoints must not be empty")
	}
	if c.Search.IndexUsernames == "" {
		return errors.New("search.index_usernames must be set")
	}
	if c.Worker.MaxConcurrentTasks <= 0 {
		return errors.New("worker.max_concurrent_tasks must be positive")
	}
	return nil
}
