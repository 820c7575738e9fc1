package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/service"
	"go.uber.org/zap"
)

const (
	dateLayout       = "2006-01-02"
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	BaseURL     string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
	now         func() time.Time
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:code", h.GetLink)
			links.Get("/:code/stats", h.GetStats)
			links.Patch("/:code/deactivate", h.Deactivate)
		}
		stats := api.Group("/stats")
		{
			stats.Get("/overview", h.Overview)
			stats.Get("/links", h.ListAllLinks)
			stats.Get("/clicks", h.Leaderboard)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL        string `json:"url"`
	CustomCode string `json:"custom_code,omitempty"`
}

// CreateLinkResponse represents the response for creating a link.
type CreateLinkResponse struct {
	Code     string `json:"code"`
	ShortURL string `json:"short_url"`
	URL      string `json:"url"`
	Accepted bool   `json:"accepted"`
	Existing bool   `json:"existing"`
}

// LinkResponse is the public view of a short link.
type LinkResponse struct {
	Code          string     `json:"code"`
	ShortURL      string     `json:"short_url"`
	URL           string     `json:"url"`
	Clicks        int64      `json:"clicks"`
	LastClickedAt *time.Time `json:"last_clicked_at"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := h.linkService.CreateLink(requestContext(c), service.CreateLinkInput{
		URL:        req.URL,
		CustomCode: req.CustomCode,
		ClientIP:   c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, h.logger, err, "create link")
	}

	status := fiber.StatusCreated
	if result.Existing {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(CreateLinkResponse{
		Code:     result.Link.Code,
		ShortURL: h.shortURL(result.Link.Code),
		URL:      result.Link.URL,
		Accepted: true,
		Existing: result.Existing,
	})
}

// ListLinks handles GET /api/links. Without ?owner= the caller's own links are listed.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit, offset := pagination(c, defaultPageLimit)

	owner := c.Query("owner")
	if owner == "" {
		owner = c.IP()
	}

	links, err := h.linkService.ListByOwner(requestContext(c), owner, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "list links")
	}

	return c.JSON(fiber.Map{
		"links":  h.linkResponses(links),
		"owner":  owner,
		"limit":  limit,
		"offset": offset,
		"count":  len(links),
	})
}

// GetLink handles GET /api/links/:code and includes a page of click history.
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if !service.ValidCode(code) {
		return respondError(c, h.logger, service.ErrNotFound, "get link")
	}

	limit, offset := pagination(c, 0)
	info, err := h.linkService.GetLinkInfo(requestContext(c), code, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "get link")
	}

	history := info.History
	if history == nil {
		history = []model.ClickDay{}
	}
	return c.JSON(fiber.Map{
		"link":    h.linkResponse(info.Link),
		"history": history,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetStats handles GET /api/links/:code/stats?date= or ?start_date=&end_date=
func (h *APIHandler) GetStats(c *fiber.Ctx) error {
	code := c.Params("code")
	if !service.ValidCode(code) {
		return respondError(c, h.logger, service.ErrNotFound, "get stats")
	}

	rng, err := h.parseRange(c)
	if err != nil {
		return respondError(c, h.logger, err, "get stats")
	}

	stats, err := h.linkService.GetStats(requestContext(c), code, rng)
	if err != nil {
		return respondError(c, h.logger, err, "get stats")
	}

	return c.JSON(fiber.Map{
		"code":         stats.Code,
		"start_date":   stats.Range.From.Format(dateLayout),
		"end_date":     stats.Range.To.Format(dateLayout),
		"clicks":       stats.Clicks,
		"total_clicks": stats.TotalClicks,
	})
}

// Deactivate handles PATCH /api/links/:code/deactivate
func (h *APIHandler) Deactivate(c *fiber.Ctx) error {
	code := c.Params("code")
	if !service.ValidCode(code) {
		return respondError(c, h.logger, service.ErrNotFound, "deactivate link")
	}

	link, err := h.linkService.Deactivate(requestContext(c), code, c.IP())
	if err != nil {
		return respondError(c, h.logger, err, "deactivate link")
	}

	h.logger.Info("short link deactivated", zap.String("code", code), zap.String("ip", c.IP()))
	return c.JSON(fiber.Map{
		"code":   link.Code,
		"active": link.Active,
	})
}

// Overview handles GET /api/stats/overview
func (h *APIHandler) Overview(c *fiber.Ctx) error {
	o, err := h.linkService.Overview(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "overview")
	}
	return c.JSON(fiber.Map{
		"total_links":   o.TotalLinks,
		"active_links":  o.ActiveLinks,
		"links_today":   o.LinksToday,
		"total_clicks":  o.TotalClicks,
		"active_blocks": o.ActiveBlocks,
	})
}

// ListAllLinks handles GET /api/stats/links, every link newest first.
func (h *APIHandler) ListAllLinks(c *fiber.Ctx) error {
	limit, offset := pagination(c, defaultPageLimit)

	links, err := h.linkService.ListAll(requestContext(c), limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "list all links")
	}

	return c.JSON(fiber.Map{
		"links":  h.linkResponses(links),
		"limit":  limit,
		"offset": offset,
		"count":  len(links),
	})
}

// Leaderboard handles GET /api/stats/clicks
func (h *APIHandler) Leaderboard(c *fiber.Ctx) error {
	board, err := h.linkService.Leaderboard(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "click leaderboard")
	}

	return c.JSON(fiber.Map{
		"summary":          board.Summary,
		"top_links":        h.linkResponses(board.TopLinks),
		"recently_clicked": h.linkResponses(board.RecentlyClicked),
	})
}

func (h *APIHandler) parseRange(c *fiber.Ctx) (service.DayRange, error) {
	if date := c.Query("date"); date != "" {
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return service.DayRange{}, dateError("date")
		}
		return service.SingleDay(t), nil
	}

	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" && end == "" {
		return service.SingleDay(h.now()), nil
	}
	if start == "" || end == "" {
		return service.DayRange{}, &service.ValidationError{Fields: []service.FieldError{{
			Field:   "start_date",
			Message: "start_date and end_date must be given together",
		}}}
	}

	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return service.DayRange{}, dateError("start_date")
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return service.DayRange{}, dateError("end_date")
	}
	return service.NewDayRange(from, to), nil
}

func dateError(field string) error {
	return &service.ValidationError{Fields: []service.FieldError{{
		Field:   field,
		Message: field + " must use the YYYY-MM-DD format",
	}}}
}

func pagination(c *fiber.Ctx, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= maxPageLimit {
		limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}
	return limit, offset
}

func (h *APIHandler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		Code:          link.Code,
		ShortURL:      h.shortURL(link.Code),
		URL:           link.URL,
		Clicks:        link.Clicks,
		LastClickedAt: link.LastClickedAt,
		Active:        link.Active,
		CreatedAt:     link.CreatedAt,
	}
}

func (h *APIHandler) linkResponses(links []model.Link) []LinkResponse {
	out := make([]LinkResponse, len(links))
	for i := range links {
		out[i] = h.linkResponse(&links[i])
	}
	return out
}
