package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baselinegate/baselinegate/internal/classify"
)

func newTestFailover(clients map[string]Client) *Failover {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	f := NewFailover(logrus.NewEntry(log))
	f.newClient = func(cfg Config) (Client, error) {
		return clients[cfg.ID], nil
	}
	return f
}

func cfg(id string, kind Kind, priority int, enabled bool, created time.Time) Config {
	return Config{
		ID:        id,
		TenantID:  "tenant-1",
		Kind:      kind,
		Priority:  priority,
		Enabled:   enabled,
		APIKey:    "key-" + id,
		Model:     "model-" + id,
		CreatedAt: created,
	}
}

func TestFailover_UsesFirstHealthyProvider(t *testing.T) {
	f := newTestFailover(map[string]Client{
		"a": &fakeClient{content: goodPayload, kind: KindAnthropic, model: "claude-sonnet-4"},
	})

	result, cerr := f.Analyze(context.Background(), []Config{
		cfg("a", KindAnthropic, 1, true, time.Now()),
	}, testRepo())
	require.Nil(t, cerr)
	assert.Equal(t, "anthropic", result.Provider)
}

func TestFailover_PriorityOrderIsDeterministic(t *testing.T) {
	// Providers created in order openai, anthropic, google with priorities
	// 2, 1, 3. The anthropic provider fails, so analysis must land on
	// openai (priority 2), never google.
	base := time.Now()
	failing := &fakeClient{err: &apiError{StatusCode: http.StatusInternalServerError, Body: "upstream down"}, kind: KindAnthropic, model: "claude-sonnet-4"}
	healthy := &fakeClient{content: goodPayload, kind: KindOpenAI, model: "gpt-4o"}
	untouched := &trackingClient{fakeClient{content: goodPayload, kind: KindGoogle, model: "gemini-2.0-flash"}, false}

	f := newTestFailover(map[string]Client{
		"openai":    healthy,
		"anthropic": failing,
		"google":    untouched,
	})

	configs := []Config{
		cfg("openai", KindOpenAI, 2, true, base),
		cfg("anthropic", KindAnthropic, 1, true, base.Add(time.Second)),
		cfg("google", KindGoogle, 3, true, base.Add(2*time.Second)),
	}

	for i := 0; i < 5; i++ {
		result, cerr := f.Analyze(context.Background(), configs, testRepo())
		require.Nil(t, cerr)
		assert.Equal(t, "openai", result.Provider)
		assert.False(t, untouched.called, "lower-priority provider must not be attempted")
	}
}

type trackingClient struct {
	fakeClient
	called bool
}

func (c *trackingClient) Complete(ctx context.Context, messages []Message) (*Response, error) {
	c.called = true
	return c.fakeClient.Complete(ctx, messages)
}

func TestFailover_SkipsDisabledProviders(t *testing.T) {
	disabled := &trackingClient{fakeClient{content: goodPayload, kind: KindOpenAI, model: "gpt-4o"}, false}
	healthy := &fakeClient{content: goodPayload, kind: KindGoogle, model: "gemini-2.0-flash"}

	f := newTestFailover(map[string]Client{
		"off": disabled,
		"on":  healthy,
	})

	result, cerr := f.Analyze(context.Background(), []Config{
		cfg("off", KindOpenAI, 1, false, time.Now()),
		cfg("on", KindGoogle, 2, true, time.Now()),
	}, testRepo())
	require.Nil(t, cerr)
	assert.Equal(t, "google", result.Provider)
	assert.False(t, disabled.called)
}

func TestFailover_UnparseableResponseFallsThrough(t *testing.T) {
	f := newTestFailover(map[string]Client{
		"garbled": &fakeClient{content: "I am unable to comply.", kind: KindOpenAI, model: "gpt-4o"},
		"good":    &fakeClient{content: goodPayload, kind: KindAnthropic, model: "claude-sonnet-4"},
	})

	result, cerr := f.Analyze(context.Background(), []Config{
		cfg("garbled", KindOpenAI, 1, true, time.Now()),
		cfg("good", KindAnthropic, 2, true, time.Now()),
	}, testRepo())
	require.Nil(t, cerr)
	assert.Equal(t, "anthropic", result.Provider)
}

func TestFailover_AllProvidersFail(t *testing.T) {
	f := newTestFailover(map[string]Client{
		"a": &fakeClient{err: &apiError{StatusCode: 500, Body: "boom"}, kind: KindOpenAI, model: "gpt-4o"},
		"b": &fakeClient{err: &apiError{StatusCode: 503, Body: "unavailable"}, kind: KindAnthropic, model: "claude-sonnet-4"},
	})

	_, cerr := f.Analyze(context.Background(), []Config{
		cfg("a", KindOpenAI, 1, true, time.Now()),
		cfg("b", KindAnthropic, 2, true, time.Now()),
	}, testRepo())
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeAIProviderError, cerr.Code)
	assert.True(t, cerr.Retryable())
	assert.Contains(t, cerr.Detail, "openai, anthropic")
}

func TestFailover_QuotaOnLastProvider(t *testing.T) {
	f := newTestFailover(map[string]Client{
		"a": &fakeClient{err: &apiError{StatusCode: http.StatusTooManyRequests, Body: "quota exceeded"}, kind: KindGoogle, model: "gemini-2.0-flash"},
	})

	_, cerr := f.Analyze(context.Background(), []Config{
		cfg("a", KindGoogle, 1, true, time.Now()),
	}, testRepo())
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeAIQuotaExceeded, cerr.Code)
	assert.True(t, cerr.Retryable())
}

func TestFailover_NoEnabledProviders(t *testing.T) {
	f := newTestFailover(nil)

	_, cerr := f.Analyze(context.Background(), []Config{
		cfg("a", KindOpenAI, 1, false, time.Now()),
	}, testRepo())
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeAIProviderError, cerr.Code)
}

func TestOrderConfigs_TiesBreakOnCreation(t *testing.T) {
	base := time.Now()
	ordered := orderConfigs([]Config{
		cfg("newer", KindGoogle, 1, true, base.Add(time.Minute)),
		cfg("older", KindOpenAI, 1, true, base),
		cfg("off", KindAnthropic, 0, false, base),
	})

	require.Len(t, ordered, 2)
	assert.Equal(t, "older", ordered[0].ID)
	assert.Equal(t, "newer", ordered[1].ID)
}
