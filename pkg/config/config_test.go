package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "knowledge_base", cfg.Database.Name)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "kb.notifications", cfg.Kafka.Topic)
	assert.Equal(t, 2, cfg.Notifications.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Attachments.SignedURLTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachments.MaxFileSizeBytes)
	assert.Equal(t, 10, cfg.Ranking.DefaultLimit)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	v.Set("ANALYTICS_CACHE_TTL", "not-a-duration")
	v.Set("ATTACHMENTS_MAX_FILE_SIZE", 0)

	cfg := fromViper(v)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachments.MaxFileSizeBytes)
}
