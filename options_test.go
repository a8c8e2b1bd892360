package flagbase

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func apply(t *testing.T, opts ...Option) *clientConfig {
	t.Helper()
	cc := &clientConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		require.NoError(t, opt(cc))
	}
	return cc
}

func TestWithPollingServiceURL(t *testing.T) {
	cc := apply(t, WithPollingServiceURL("http://localhost:9051"))
	assert.Equal(t, "http://localhost:9051", cc.cfg.PollingServiceURL())

	err := WithPollingServiceURL("")(cc)
	assert.Error(t, err)
}

func TestWithPollingInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		expected int
	}{
		{"seconds", 30 * time.Second, 30000},
		{"below floor is kept as configured", 500 * time.Millisecond, 500},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := apply(t, WithPollingInterval(tt.interval))
			assert.Equal(t, tt.expected, cc.cfg.PollingIntervalMs())
		})
	}
}

func TestWithServerKey(t *testing.T) {
	cc := apply(t, WithServerKey("sdk-server_abc"))
	assert.Equal(t, "sdk-server_abc", cc.cfg.ServerKey())
	assert.Error(t, WithServerKey("")(cc))
}

func TestWithRequestTimeout(t *testing.T) {
	cc := apply(t, WithRequestTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, cc.cfg.RequestTimeout)
	assert.Error(t, WithRequestTimeout(-time.Second)(cc))
}

func TestWithSQLiteStore(t *testing.T) {
	cc := apply(t, WithSQLiteStore(""))
	assert.Equal(t, ":memory:", cc.cfg.SQLitePath)

	cc = apply(t, WithSQLiteStore("/tmp/flags.db"))
	assert.Equal(t, "/tmp/flags.db", cc.cfg.SQLitePath)
}

func TestWithRedisSink(t *testing.T) {
	cc := apply(t, WithRedisSink(RedisConfig{Addr: "localhost:6379", Password: "pw"}))
	assert.Equal(t, "localhost:6379", cc.cfg.RedisAddr)
	assert.Equal(t, "pw", cc.cfg.RedisPassword)
	assert.Equal(t, "flagbase:events", cc.cfg.RedisChannel, "channel keeps its default")

	cc = apply(t, WithRedisSink(RedisConfig{Addr: "localhost:6379", Channel: "flags"}))
	assert.Equal(t, "flags", cc.cfg.RedisChannel)
}

func TestWithAdminServer(t *testing.T) {
	cc := apply(t, WithAdminServer(AdminConfig{Addr: ":9100", WebhookSecret: "s"}))
	assert.Equal(t, ":9100", cc.cfg.AdminAddr)
	assert.Equal(t, "s", cc.cfg.WebhookSecret)
}

func TestWithOptionalComponents(t *testing.T) {
	hc := &http.Client{}
	l := zap.NewNop()

	cc := apply(t,
		WithSnapshotPath("/var/lib/flagbase"),
		WithCacheFilter(`attributes.enabled == true`),
		WithFaultEvents(true),
		WithHTTPClient(hc),
		WithLogger(l),
		WithOpenTelemetry(nil, nil),
	)

	assert.Equal(t, "/var/lib/flagbase", cc.cfg.SnapshotPath)
	assert.Equal(t, `attributes.enabled == true`, cc.cfg.CacheFilter)
	assert.True(t, cc.cfg.FaultEvents)
	assert.Same(t, hc, cc.httpClient)
	assert.Same(t, l, cc.zapLogger)
	assert.True(t, cc.otelEnabled)
}

func TestWithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceURL = "http://flags.internal"
	cfg.SDKKey = "from-config"
	cfg.IntervalMs = 10000

	cc := apply(t, WithConfig(cfg), WithServerKey("override"))
	assert.Equal(t, "http://flags.internal", cc.cfg.PollingServiceURL())
	assert.Equal(t, 10000, cc.cfg.PollingIntervalMs())
	assert.Equal(t, "override", cc.cfg.ServerKey(), "later options win")
}
