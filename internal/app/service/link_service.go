package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	generateRetries = 6
	leaderboardSize = 5
)

// DedupPolicy decides whether submitting an already shortened URL returns the existing link.
type DedupPolicy string

const (
	// DedupNone always creates a new link.
	DedupNone DedupPolicy = "none"
	// DedupPerIP returns the caller's own active link for the same URL.
	DedupPerIP DedupPolicy = "per_ip"
	// DedupGlobal returns any active link for the same URL, whoever created it.
	DedupGlobal DedupPolicy = "global"
)

// ParseDedupPolicy maps a config value to a policy; unknown values are an error.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch p := DedupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", DedupNone:
		return DedupNone, nil
	case DedupPerIP, DedupGlobal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dedup policy %q", s)
	}
}

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*CreateLinkResult, error)
	GetLink(ctx context.Context, code string) (*model.Link, error)
	GetLinkInfo(ctx context.Context, code string, limit, offset int) (*LinkInfo, error)
	GetStats(ctx context.Context, code string, rng DayRange) (*LinkStats, error)
	ListByOwner(ctx context.Context, ownerIP string, limit, offset int) ([]model.Link, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.Link, error)
	Leaderboard(ctx context.Context) (model.ClickLeaderboard, error)
	Deactivate(ctx context.Context, code, callerIP string) (*model.Link, error)
	Overview(ctx context.Context) (model.Overview, error)
}

// LinkServiceDeps bundles the collaborators of the link service.
type LinkServiceDeps struct {
	Links      repository.LinkRepository
	Overview   repository.OverviewRepository
	Classifier *SpamClassifier
	Escalation *EscalationEngine
	Clicks     *ClickRecorder
	Codes      CodeGenerator
	Filter     *CodeFilter
	Dedup      DedupPolicy
	Logger     *zap.Logger
	Metrics    *infraPrometheus.Metrics
}

type linkService struct {
	repo       repository.LinkRepository
	overview   repository.OverviewRepository
	classifier *SpamClassifier
	escalation *EscalationEngine
	clicks     *ClickRecorder
	codes      CodeGenerator
	filter     *CodeFilter
	dedup      DedupPolicy
	now        Clock
	logger     *zap.Logger
	metrics    *infraPrometheus.Metrics
}

// NewLinkService returns a service implementation backed by the given collaborators.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codes := deps.Codes
	if codes == nil {
		codes = NewNanoIDGenerator(defaultCodeLength)
	}
	filter := deps.Filter
	if filter == nil {
		filter = NewCodeFilter(0, 0)
	}
	dedup := deps.Dedup
	if dedup == "" {
		dedup = DedupNone
	}
	return &linkService{
		repo:       deps.Links,
		overview:   deps.Overview,
		classifier: deps.Classifier,
		escalation: deps.Escalation,
		clicks:     deps.Clicks,
		codes:      codes,
		filter:     filter,
		dedup:      dedup,
		now:        systemClock,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	URL        string
	CustomCode string
	ClientIP   string
	UserAgent  string
}

// CreateLinkResult is the created link, or the existing one returned by the dedup policy.
type CreateLinkResult struct {
	Link     *model.Link
	Existing bool
}

// LinkInfo is a link snapshot together with a page of its click history.
type LinkInfo struct {
	Link    *model.Link
	History []model.ClickDay
}

// LinkStats compares history-based clicks in a range with the authoritative counter.
type LinkStats struct {
	Code        string
	Range       DayRange
	Clicks      int64
	TotalClicks int64
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*CreateLinkResult, error) {
	url := strings.TrimSpace(input.URL)
	code := strings.TrimSpace(input.CustomCode)

	if err := ValidateCreate(url, code); err != nil {
		return nil, err
	}

	if s.escalation.IsBlocked(ctx, input.ClientIP) {
		return nil, ErrIPBlocked
	}

	decision, err := s.classifier.Classify(ctx, ClassifyRequest{
		URL:        url,
		CustomCode: code,
		ClientIP:   input.ClientIP,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if !decision.Accept {
		if err := s.escalation.RecordSpamEvent(ctx, input.ClientIP, decision.Reason, decision.Detail); err != nil {
			s.logger.Error("failed to record spam activity",
				zap.String("ip", input.ClientIP),
				zap.String("reason", string(decision.Reason)),
				zap.Error(err),
			)
		}
		return nil, &SpamRejectedError{Reason: decision.Reason}
	}

	// A custom code is an explicit request for a new link, so dedup does not apply.
	if code == "" {
		existing, err := s.findExisting(ctx, url, input.ClientIP)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &CreateLinkResult{Link: existing, Existing: true}, nil
		}
	}

	link := &model.Link{
		URL:       url,
		OwnerIP:   input.ClientIP,
		UserAgent: input.UserAgent,
		Active:    true,
	}

	if code != "" {
		err = s.createWithCode(ctx, link, code)
	} else {
		err = s.createGenerated(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinksCreated()
	s.logger.Info("short link created",
		zap.String("code", link.Code),
		zap.String("owner_ip", link.OwnerIP),
	)
	return &CreateLinkResult{Link: link}, nil
}

func (s *linkService) findExisting(ctx context.Context, url, ip string) (*model.Link, error) {
	var (
		link *model.Link
		err  error
	)
	switch s.dedup {
	case DedupPerIP:
		link, err = s.repo.FindByURLAndOwner(ctx, url, ip)
	case DedupGlobal:
		link, err = s.repo.FindByURL(ctx, url)
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, nil
		}
		return nil, storeUnavailable("find existing link", err)
	}
	return link, nil
}

// createWithCode checks the code before inserting. The check is advisory; the store's
// uniqueness constraint settles races.
func (s *linkService) createWithCode(ctx context.Context, link *model.Link, code string) error {
	taken, err := s.codeTaken(ctx, code)
	if err != nil {
		s.logger.Warn("custom code preflight failed", zap.String("code", code), zap.Error(err))
	} else if taken {
		return ErrConflict
	}

	link.Code = code
	return s.insert(ctx, link)
}

func (s *linkService) createGenerated(ctx context.Context, link *model.Link) error {
	for i := 0; i < generateRetries; i++ {
		code, err := s.codes.NewCode()
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		if taken, err := s.codeTaken(ctx, code); err == nil && taken {
			continue
		}

		link.Code = code
		err = s.insert(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return ErrConflict
}

func (s *linkService) codeTaken(ctx context.Context, code string) (bool, error) {
	if !s.filter.MayContain(code) {
		return false, nil
	}
	return s.repo.Exists(ctx, code)
}

func (s *linkService) insert(ctx context.Context, link *model.Link) error {
	link.CreatedAt = s.now()
	if err := s.repo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			s.filter.Add(link.Code)
			return ErrConflict
		}
		return storeUnavailable("create link", err)
	}
	s.filter.Add(link.Code)
	return nil
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable("get link", err)
	}
	return link, nil
}

func (s *linkService) GetLinkInfo(ctx context.Context, code string, limit, offset int) (*LinkInfo, error) {
	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	history, err := s.clicks.GetClickHistory(ctx, code, limit, offset)
	if err != nil {
		return nil, err
	}
	return &LinkInfo{Link: link, History: history}, nil
}

func (s *linkService) GetStats(ctx context.Context, code string, rng DayRange) (*LinkStats, error) {
	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	count, err := s.clicks.GetDailyStats(ctx, code, rng)
	if err != nil {
		return nil, err
	}
	return &LinkStats{
		Code:        code,
		Range:       rng,
		Clicks:      count,
		TotalClicks: link.Clicks,
	}, nil
}

func (s *linkService) ListByOwner(ctx context.Context, ownerIP string, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.ListByOwner(ctx, ownerIP, limit, offset)
	if err != nil {
		return nil, storeUnavailable("list links", err)
	}
	return links, nil
}

func (s *linkService) ListAll(ctx context.Context, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, storeUnavailable("list all links", err)
	}
	return links, nil
}

// Leaderboard ranks links by their authoritative counters, not by click history.
func (s *linkService) Leaderboard(ctx context.Context) (model.ClickLeaderboard, error) {
	board, err := s.repo.ClickLeaderboard(ctx, leaderboardSize)
	if err != nil {
		return model.ClickLeaderboard{}, storeUnavailable("click leaderboard", err)
	}
	return board, nil
}

// Deactivate disables a link. Only the IP that created it may do so.
func (s *linkService) Deactivate(ctx context.Context, code, callerIP string) (*model.Link, error) {
	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.OwnerIP != callerIP {
		return nil, ErrForbidden
	}

	if err := s.repo.Deactivate(ctx, code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable("deactivate link", err)
	}
	link.Active = false
	return link, nil
}

func (s *linkService) Overview(ctx context.Context) (model.Overview, error) {
	if s.overview == nil {
		return model.Overview{}, storeUnavailable("overview", errors.New("overview store not configured"))
	}
	o, err := s.overview.Overview(ctx, s.now())
	if err != nil {
		return model.Overview{}, storeUnavailable("overview", err)
	}
	return o, nil
}
