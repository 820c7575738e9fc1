package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
)

const (
	defaultMaxLinksPerDay         = 50
	defaultRapidCreationThreshold = 10
)

// SpamRules configures the classifier. Zero thresholds fall back to the defaults.
type SpamRules struct {
	BlockedDomains         []string
	SuspiciousKeywords     []string
	MaxLinksPerDay         int
	RapidCreationThreshold int
}

// ClassifyRequest is a link creation request as seen by the classifier.
type ClassifyRequest struct {
	URL        string
	CustomCode string
	ClientIP   string
}

// Decision is the classifier verdict. Reason and Detail are set only on rejection.
type Decision struct {
	Accept bool
	Reason model.AbuseKind
	Detail string
}

// CreationCounter counts links created by an IP since a point in time.
type CreationCounter interface {
	CountByOwnerSince(ctx context.Context, ownerIP string, since time.Time) (int64, error)
}

// SpamClassifier evaluates creation requests against static rules and creation history.
type SpamClassifier struct {
	rules   SpamRules
	links   CreationCounter
	now     Clock
	metrics *infraPrometheus.Metrics
}

// NewSpamClassifier normalises the rule lists and returns a classifier.
func NewSpamClassifier(rules SpamRules, links CreationCounter, metrics *infraPrometheus.Metrics) *SpamClassifier {
	rules.BlockedDomains = normaliseList(rules.BlockedDomains)
	rules.SuspiciousKeywords = normaliseList(rules.SuspiciousKeywords)
	if rules.MaxLinksPerDay <= 0 {
		rules.MaxLinksPerDay = defaultMaxLinksPerDay
	}
	if rules.RapidCreationThreshold <= 0 {
		rules.RapidCreationThreshold = defaultRapidCreationThreshold
	}
	return &SpamClassifier{
		rules:   rules,
		links:   links,
		now:     systemClock,
		metrics: metrics,
	}
}

// Classify runs the checks in order and stops at the first match.
// The request must already have passed ValidateCreate.
func (c *SpamClassifier) Classify(ctx context.Context, req ClassifyRequest) (Decision, error) {
	decision, err := c.classify(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if decision.Accept {
		c.metrics.ObserveDecision("accept")
	} else {
		c.metrics.ObserveDecision(string(decision.Reason))
	}
	return decision, nil
}

func (c *SpamClassifier) classify(ctx context.Context, req ClassifyRequest) (Decision, error) {
	host := hostname(req.URL)
	for _, domain := range c.rules.BlockedDomains {
		if strings.Contains(host, domain) {
			return reject(model.AbuseBlockedDomain, "Domain: "+host), nil
		}
	}

	lowered := strings.ToLower(req.URL)
	for _, keyword := range c.rules.SuspiciousKeywords {
		if strings.Contains(lowered, keyword) {
			return reject(model.AbuseSuspiciousKeyword, "URL: "+req.URL), nil
		}
	}

	now := c.now()

	daily, err := c.links.CountByOwnerSince(ctx, req.ClientIP, trailing(now, day))
	if err != nil {
		return Decision{}, storeUnavailable("count daily links", err)
	}
	if daily >= int64(c.rules.MaxLinksPerDay) {
		return reject(model.AbuseDailyLimitExceeded, "Daily link limit exceeded"), nil
	}

	hourly, err := c.links.CountByOwnerSince(ctx, req.ClientIP, trailing(now, hour))
	if err != nil {
		return Decision{}, storeUnavailable("count hourly links", err)
	}
	if hourly >= int64(c.rules.RapidCreationThreshold) {
		return reject(model.AbuseRapidCreation, fmt.Sprintf("%d links created in the last hour", hourly)), nil
	}

	return Decision{Accept: true}, nil
}

func reject(reason model.AbuseKind, detail string) Decision {
	return Decision{Accept: false, Reason: reason, Detail: detail}
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func normaliseList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
