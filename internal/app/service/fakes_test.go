package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/repository"
)

var errStoreDown = errors.New("connection refused")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memLinkRepository is an in-memory repository.LinkRepository. The *Err fields force failures.
type memLinkRepository struct {
	mu        sync.Mutex
	links     map[string]*model.Link
	getErr    error
	countErr  error
	incErr    error
	createErr error
	existsErr error
	creates   int
}

func newMemLinkRepository() *memLinkRepository {
	return &memLinkRepository{links: map[string]*model.Link{}}
}

func (m *memLinkRepository) Create(ctx context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.links[link.Code]; ok {
		return repository.ErrDuplicateCode
	}
	cp := *link
	m.links[link.Code] = &cp
	return nil
}

func (m *memLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	link, ok := m.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *memLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.links[code]
	return ok, nil
}

func (m *memLinkRepository) sorted() []model.Link {
	out := make([]model.Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memLinkRepository) FindByURL(ctx context.Context, url string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.sorted() {
		if l.URL == url && l.Active {
			return &l, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (m *memLinkRepository) FindByURLAndOwner(ctx context.Context, url, ownerIP string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.sorted() {
		if l.URL == url && l.OwnerIP == ownerIP && l.Active {
			return &l, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (m *memLinkRepository) ListByOwner(ctx context.Context, ownerIP string, limit, offset int) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Link
	all := m.sorted()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].OwnerIP == ownerIP {
			out = append(out, all[i])
		}
	}
	if offset >= len(out) {
		return []model.Link{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLinkRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	out := make([]model.Link, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if offset >= len(out) {
		return []model.Link{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLinkRepository) ClickLeaderboard(ctx context.Context, limit int) (model.ClickLeaderboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.ClickLeaderboard{}, m.getErr
	}
	board := model.ClickLeaderboard{TopLinks: []model.Link{}, RecentlyClicked: []model.Link{}}
	all := m.sorted()
	for _, l := range all {
		board.Summary.TotalLinks++
		board.Summary.TotalClicks += l.Clicks
		if l.Clicks > 0 {
			board.Summary.ClickedLinks++
			board.TopLinks = append(board.TopLinks, l)
		}
		if l.LastClickedAt != nil {
			board.RecentlyClicked = append(board.RecentlyClicked, l)
		}
	}
	board.Summary.UnclickedLinks = board.Summary.TotalLinks - board.Summary.ClickedLinks
	sort.SliceStable(board.TopLinks, func(i, j int) bool {
		if board.TopLinks[i].Clicks == board.TopLinks[j].Clicks {
			return board.TopLinks[i].CreatedAt.After(board.TopLinks[j].CreatedAt)
		}
		return board.TopLinks[i].Clicks > board.TopLinks[j].Clicks
	})
	sort.SliceStable(board.RecentlyClicked, func(i, j int) bool {
		return board.RecentlyClicked[i].LastClickedAt.After(*board.RecentlyClicked[j].LastClickedAt)
	})
	if len(board.TopLinks) > limit {
		board.TopLinks = board.TopLinks[:limit]
	}
	if len(board.RecentlyClicked) > limit {
		board.RecentlyClicked = board.RecentlyClicked[:limit]
	}
	return board, nil
}

func (m *memLinkRepository) ListCodes(ctx context.Context, after string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := make([]string, 0, len(m.links))
	for code := range m.links {
		if code > after {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (m *memLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incErr != nil {
		return m.incErr
	}
	link, ok := m.links[code]
	if !ok {
		return repository.ErrLinkNotFound
	}
	link.Clicks++
	t := at
	link.LastClickedAt = &t
	return nil
}

func (m *memLinkRepository) Deactivate(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[code]
	if !ok {
		return repository.ErrLinkNotFound
	}
	link.Active = false
	return nil
}

func (m *memLinkRepository) CountByOwnerSince(ctx context.Context, ownerIP string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, l := range m.links {
		if l.OwnerIP == ownerIP && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// seed stores a link created at the given instant without going through the service.
func (m *memLinkRepository) seed(code, url, ip string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[code] = &model.Link{Code: code, URL: url, OwnerIP: ip, Active: true, CreatedAt: at}
}

func (m *memLinkRepository) get(code string) model.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.links[code]
}

var _ repository.LinkRepository = (*memLinkRepository)(nil)

type memEventStore struct {
	mu        sync.Mutex
	events    []model.AbuseEvent
	appendErr error
	countErr  error
}

func (m *memEventStore) Append(ctx context.Context, event *model.AbuseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	event.ID = uint64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memEventStore) CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, e := range m.events {
		if e.IP == ip && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memEventStore) byIP(ip string) []model.AbuseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AbuseEvent
	for _, e := range m.events {
		if e.IP == ip {
			out = append(out, e)
		}
	}
	return out
}

type memBlockStore struct {
	mu        sync.Mutex
	entries   map[string]model.BlockEntry
	getErr    error
	upsertErr error
	upserts   int
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{entries: map[string]model.BlockEntry{}}
}

func (m *memBlockStore) Get(ctx context.Context, ip string) (*model.BlockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[ip]
	if !ok {
		return nil, repository.ErrBlockNotFound
	}
	return &e, nil
}

func (m *memBlockStore) Upsert(ctx context.Context, entry *model.BlockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.entries[entry.IP] = *entry
	return nil
}

func (m *memBlockStore) ListActive(ctx context.Context, now time.Time, limit int) ([]model.BlockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BlockEntry
	for _, e := range m.entries {
		if e.ActiveAt(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memHistory struct {
	mu        sync.Mutex
	records   []model.ClickRecord
	appendErr error
	readErr   error
}

func (m *memHistory) Append(ctx context.Context, record *model.ClickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *memHistory) History(ctx context.Context, code string, limit, offset, samples int) ([]model.ClickDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	byDay := map[int64]*model.ClickDay{}
	var days []int64
	for _, r := range m.records {
		if r.Code != code {
			continue
		}
		d, ok := byDay[r.Day]
		if !ok {
			d = &model.ClickDay{Date: time.Unix(r.Day, 0).UTC()}
			byDay[r.Day] = d
			days = append(days, r.Day)
		}
		d.Count++
		if len(d.Samples) < samples {
			d.Samples = append(d.Samples, model.ClickSample{Timestamp: r.ClickedAt, IP: r.IP, UserAgent: r.UserAgent})
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	out := []model.ClickDay{}
	for i, d := range days {
		if i < offset {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, *byDay[d])
	}
	return out, nil
}

func (m *memHistory) CountBetween(ctx context.Context, code string, fromDay, toDay int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	var n int64
	for _, r := range m.records {
		if r.Code == code && r.Day >= fromDay && r.Day <= toDay {
			n++
		}
	}
	return n, nil
}

func (m *memHistory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// sequenceGenerator hands out the given codes in order, then numbered fallbacks.
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	n     int
}

func (g *sequenceGenerator) NewCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if len(g.codes) > 0 {
		code := g.codes[0]
		g.codes = g.codes[1:]
		return code, nil
	}
	return fmt.Sprintf("gen%05d", g.n), nil
}
