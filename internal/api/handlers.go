package api

import (
	"time"

	"github.com/bilgisen/newsenrich/internal/config"
	"github.com/bilgisen/newsenrich/internal/feed"
	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/middleware"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/bilgisen/newsenrich/internal/store"
	"github.com/gofiber/fiber/v2"
)

// LoadRequest is the body of POST /api/v1/admin/load.
type LoadRequest struct {
	FeedKey      string `json:"feed_key" validate:"required"`
	ForceRefresh bool   `json:"force_refresh"`
}

// NewsQuery filters GET /api/v1/news.
type NewsQuery struct {
	State string `query:"state" validate:"omitempty,oneof=pending summarizing summarized"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// CacheQuery controls DELETE /api/v1/admin/cache.
type CacheQuery struct {
	All bool `query:"all"`
}

type Handlers struct {
	config    *config.Config
	processor *feed.Processor
	store     *store.Store
	remote    bool
}

func NewHandlers(cfg *config.Config, processor *feed.Processor, st *store.Store, remote bool) *Handlers {
	return &Handlers{
		config:    cfg,
		processor: processor,
		store:     st,
		remote:    remote,
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	stats := h.store.Stats()
	return c.JSON(fiber.Map{
		"status":          "ok",
		"time":            time.Now().UTC().Format(time.RFC3339),
		"feed_key":        stats.FeedKey,
		"generation":      stats.Generation,
		"remote_analysis": h.remote,
	})
}

// GetFeeds handles GET /api/v1/feeds
func (h *Handlers) GetFeeds(c *fiber.Ctx) error {
	active, _ := h.processor.Active()

	feeds := make([]fiber.Map, 0, len(h.config.Feeds))
	for _, f := range h.config.Feeds {
		feeds = append(feeds, fiber.Map{
			"key":     f.Key,
			"name":    f.Name,
			"url":     f.URL,
			"default": f.Key == h.config.DefaultFeed,
			"active":  f.Key == active.Key,
		})
	}

	return c.JSON(fiber.Map{
		"feeds": feeds,
	})
}

// GetNews handles GET /api/v1/news
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	q := middleware.QueryParams[NewsQuery](c)
	if q == nil {
		q = &NewsQuery{}
	}

	items := h.store.Items()
	if q.State != "" {
		filtered := items[:0]
		for _, item := range items {
			if itemState(item) == q.State {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	return c.JSON(fiber.Map{
		"stats": h.store.Stats(),
		"total": len(items),
		"items": items,
	})
}

func itemState(item models.NewsItem) string {
	switch {
	case item.IsSummarized:
		return "summarized"
	case item.IsSummarizing:
		return "summarizing"
	default:
		return "pending"
	}
}

// GetNewsByID handles GET /api/v1/news/:id
func (h *Handlers) GetNewsByID(c *fiber.Ctx) error {
	id := c.Params("id")
	item, ok := h.store.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "News not found")
	}

	return c.JSON(fiber.Map{
		"item":  item,
		"state": itemState(item),
	})
}

// LoadFeed handles POST /api/v1/admin/load
func (h *Handlers) LoadFeed(c *fiber.Ctx) error {
	req := middleware.Validated[LoadRequest](c)

	f, ok := h.config.Feed(req.FeedKey)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Unknown feed: "+req.FeedKey)
	}

	logger.Get().Info().
		Str("feed_key", f.Key).
		Bool("force_refresh", req.ForceRefresh).
		Str("ip", c.IP()).
		Msg("Received load feed request")

	res, err := h.processor.Load(c.UserContext(), f, req.ForceRefresh)
	if err != nil {
		return err
	}

	return c.JSON(res)
}

// ClearCache handles DELETE /api/v1/admin/cache
func (h *Handlers) ClearCache(c *fiber.Ctx) error {
	q := middleware.QueryParams[CacheQuery](c)

	var err error
	if q != nil && q.All {
		err = h.processor.InvalidateAll(c.UserContext())
	} else {
		err = h.processor.Invalidate(c.UserContext())
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":  "cleared",
		"message": "Feed cache cleared",
	})
}
