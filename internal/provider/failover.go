package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// Failover runs an analysis against a tenant's providers in priority
// order, moving to the next provider when one fails.
type Failover struct {
	analyzer  *Analyzer
	newClient func(Config) (Client, error)
	log       *logrus.Entry
}

func NewFailover(log *logrus.Entry) *Failover {
	return &Failover{
		analyzer:  NewAnalyzer(),
		newClient: NewClient,
		log:       log,
	}
}

// orderConfigs returns the enabled providers sorted by ascending priority,
// ties broken by creation time. The order is deterministic for a given
// configuration set.
func orderConfigs(configs []Config) []Config {
	ordered := make([]Config, 0, len(configs))
	for _, c := range configs {
		if c.Enabled {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// Analyze tries each enabled provider in turn and returns the first
// successful result. When every provider fails, the returned error
// reflects the last failure.
func (f *Failover) Analyze(ctx context.Context, configs []Config, repo *extract.ProcessedRepository) (*models.AnalysisResult, *classify.Error) {
	ordered := orderConfigs(configs)
	if len(ordered) == 0 {
		return nil, classify.New(classify.CodeAIProviderError, "no enabled AI providers configured")
	}

	var lastErr error
	var attempted []string
	for _, cfg := range ordered {
		attempted = append(attempted, string(cfg.Kind))

		client, err := f.newClient(cfg)
		if err != nil {
			f.log.WithError(err).WithField("provider", cfg.Kind).Warn("skipping misconfigured provider")
			lastErr = err
			continue
		}

		result, err := f.analyzer.Analyze(ctx, client, repo)
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"provider": cfg.Kind,
				"model":    client.Model(),
			}).Warn("provider attempt failed")
			lastErr = err
			continue
		}

		return result, nil
	}

	exhausted := fmt.Errorf("all providers failed (%s): %w", strings.Join(attempted, ", "), lastErr)

	var apiErr *apiError
	if errors.As(lastErr, &apiErr) && apiErr.quotaExceeded() {
		return nil, classify.Wrap(classify.CodeAIQuotaExceeded, exhausted)
	}
	return nil, classify.Wrap(classify.CodeAIProviderError, exhausted)
}

// TestConnection checks a single provider configuration end to end.
func (f *Failover) TestConnection(ctx context.Context, cfg Config) error {
	client, err := f.newClient(cfg)
	if err != nil {
		return err
	}
	return client.TestConnection(ctx)
}
