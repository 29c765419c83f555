package queue

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/config"
)

type Config struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool

	// request ids remembered for duplicate detection
	DedupeSize int
}

func FromConfig(c config.QueueCfg) Config {
	return Config{
		Enabled:          c.Enabled,
		Brokers:          split(c.Brokers),
		Topic:            c.Topic,
		GroupID:          c.GroupID,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 60 * time.Second,
		InitialOldest:    false,
		DedupeSize:       8192,
	}
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
