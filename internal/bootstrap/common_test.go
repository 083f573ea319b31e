package bootstrap

import (
	"tradecore/internal/config"
	"tradecore/internal/core"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, fields ...interface{})               {}
func (m *mockLogger) Info(msg string, fields ...interface{})                {}
func (m *mockLogger) Warn(msg string, fields ...interface{})                {}
func (m *mockLogger) Error(msg string, fields ...interface{})               {}
func (m *mockLogger) Fatal(msg string, fields ...interface{})               {}
func (m *mockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *mockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

// testConfig is the default config without sockets or files
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Type = "memory"
	cfg.Telemetry.EnableMetrics = false
	cfg.Notify.LogEvents = false
	return cfg
}
