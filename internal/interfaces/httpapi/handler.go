package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"channelwatch/internal/application"
	"channelwatch/internal/domain/entity"
)

// ChannelManager is the channel side of the control panel.
type ChannelManager interface {
	List(ctx context.Context) ([]*entity.ChannelRecord, error)
	Add(ctx context.Context, identifier string) (*entity.ChannelRecord, error)
	Remove(ctx context.Context, identifier string) error
	Rename(ctx context.Context, oldIdentifier, newIdentifier string) error
	Reload(ctx context.Context) (int, error)
	Info(ctx context.Context, channelIDs []string) map[string]*entity.ChannelInfo
	ChannelState(ctx context.Context, channelID string) (*entity.ChannelState, bool, error)
	ResetState(ctx context.Context, channelID string) error
	CleanupCaches(ctx context.Context) (*application.CleanupReport, error)
}

// CycleRunner is the scheduler side of the control panel.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*application.CycleReport, error)
	Running() bool
	LastReport() *application.CycleReport
}

type Handler struct {
	channels  ChannelManager
	scheduler CycleRunner
	logger    *zap.Logger
	version   string
	startedAt time.Time
}

func NewHandler(channels ChannelManager, scheduler CycleRunner, logger *zap.Logger, version string) *Handler {
	return &Handler{
		channels:  channels,
		scheduler: scheduler,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
	}
}

type channelView struct {
	Identifier string `json:"identifier"`
	ResolvedID string `json:"resolved_id"`
	ChannelID  string `json:"channel_id"`
}

func newChannelView(record *entity.ChannelRecord) channelView {
	return channelView{
		Identifier: record.Identifier,
		ResolvedID: record.ResolvedID,
		ChannelID:  record.ChannelID(),
	}
}

type addChannelRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

type renameChannelRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

type infoView struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	Description string          `json:"description,omitempty"`
	Latest      *latestItemView `json:"latest,omitempty"`
}

type latestItemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

func (h *Handler) ListChannels(c *gin.Context) {
	records, err := h.channels.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		failWith(c, err)
		return
	}

	views := make([]channelView, 0, len(records))
	for _, record := range records {
		views = append(views, newChannelView(record))
	}
	success(c, views)
}

func (h *Handler) AddChannel(c *gin.Context) {
	var req addChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	record, err := h.channels.Add(c.Request.Context(), req.Identifier)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, newChannelView(record))
}

func (h *Handler) RenameChannel(c *gin.Context) {
	var req renameChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := h.channels.Rename(c.Request.Context(), c.Param("identifier"), req.Identifier); err != nil {
		failWith(c, err)
		return
	}
	success(c, nil)
}

func (h *Handler) RemoveChannel(c *gin.Context) {
	if err := h.channels.Remove(c.Request.Context(), c.Param("identifier")); err != nil {
		failWith(c, err)
		return
	}
	success(c, nil)
}

func (h *Handler) ReloadChannels(c *gin.Context) {
	n, err := h.channels.Reload(c.Request.Context())
	if err != nil {
		h.logger.Error("reload channels failed", zap.Error(err))
		failWith(c, err)
		return
	}
	success(c, gin.H{"channels": n})
}

// ChannelInfo describes the channels named in ?ids=a,b, or every
// configured channel when ids is absent.
func (h *Handler) ChannelInfo(c *gin.Context) {
	ctx := c.Request.Context()

	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		records, err := h.channels.List(ctx)
		if err != nil {
			failWith(c, err)
			return
		}
		for _, record := range records {
			if id := record.ChannelID(); id != "" {
				ids = append(ids, id)
			}
		}
	}

	infos := h.channels.Info(ctx, ids)
	views := make([]infoView, 0, len(ids))
	for _, id := range ids {
		info, ok := infos[id]
		if !ok {
			continue
		}
		view := infoView{
			ID:          id,
			Title:       info.DisplayTitle(),
			Thumbnail:   info.Thumbnail,
			Description: info.Description,
		}
		if len(info.Items) > 0 {
			latest := info.Items[0]
			view.Latest = &latestItemView{
				ID:          latest.ID,
				Title:       latest.Title,
				URL:         latest.URL,
				PublishedAt: latest.PublishedAt,
			}
		}
		views = append(views, view)
	}
	success(c, views)
}

func (h *Handler) GetState(c *gin.Context) {
	state, ok, err := h.channels.ChannelState(c.Request.Context(), c.Param("channelID"))
	if err != nil {
		failWith(c, err)
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "no state recorded for channel")
		return
	}
	success(c, state)
}

func (h *Handler) ResetState(c *gin.Context) {
	if err := h.channels.ResetState(c.Request.Context(), c.Param("channelID")); err != nil {
		failWith(c, err)
		return
	}
	success(c, nil)
}

// Check runs one poll cycle synchronously and returns its report.
func (h *Handler) Check(c *gin.Context) {
	report, err := h.scheduler.RunCycle(c.Request.Context())
	if err != nil {
		h.logger.Warn("manual check failed", zap.Error(err))
		failWith(c, err)
		return
	}
	success(c, report)
}

func (h *Handler) CleanupCache(c *gin.Context) {
	report, err := h.channels.CleanupCaches(c.Request.Context())
	if err != nil {
		h.logger.Error("cache cleanup failed", zap.Error(err))
		failWith(c, err)
		return
	}
	success(c, report)
}

func (h *Handler) Status(c *gin.Context) {
	channels := 0
	if records, err := h.channels.List(c.Request.Context()); err == nil {
		channels = len(records)
	}

	success(c, gin.H{
		"version":     h.version,
		"running":     h.scheduler.Running(),
		"channels":    channels,
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"last_report": h.scheduler.LastReport(),
	})
}
