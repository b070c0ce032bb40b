package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.local",
		Port:     5433,
		User:     "seido",
		Password: "secret",
		Database: "seido",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db.local port=5433 user=seido password=secret dbname=seido sslmode=disable", cfg.GetDSN())
}

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TESTDB_HOST", "pg")
	t.Setenv("TESTDB_PORT", "6543")
	t.Setenv("TESTDB_MAX_CONNS", "not-a-number")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, MaxConns: 10}
	cfg.LoadFromEnv("TESTDB")

	assert.Equal(t, "pg", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	// invalid numbers keep the previous value
	assert.Equal(t, 10, cfg.MaxConns)
}

func TestMQTTConfig_LoadFromEnv_QoS(t *testing.T) {
	t.Setenv("TESTMQ_QOS", "1")
	t.Setenv("TESTMQ_TOPIC_PREFIX", "seido/test")

	cfg := MQTTConfig{}
	cfg.LoadFromEnv("TESTMQ")
	assert.Equal(t, byte(1), cfg.QoS)
	assert.Equal(t, "seido/test", cfg.TopicPrefix)

	t.Setenv("TESTMQ_QOS", "7")
	cfg.LoadFromEnv("TESTMQ")
	assert.Equal(t, byte(1), cfg.QoS)
}
