package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/airbadge/internal/auth"
	"github.com/gdg-garage/airbadge/internal/badges"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/tracker"
)

// Trackers hands out the badge tracker of a logged-in user.
type Trackers interface {
	Ensure(ctx context.Context, userID uint) (*tracker.Tracker, error)
}

type ProgressHandler struct {
	trackers    Trackers
	authHandler *auth.AuthHandler
}

func NewProgressHandler(trackers Trackers, authHandler *auth.AuthHandler) *ProgressHandler {
	return &ProgressHandler{trackers: trackers, authHandler: authHandler}
}

func (h *ProgressHandler) trackerFor(ctx context.Context, in auth.AuthInput) (*tracker.Tracker, error) {
	userID, err := h.authHandler.Authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	t, err := h.trackers.Ensure(ctx, userID)
	if err != nil {
		return nil, huma.Error503ServiceUnavailable("Badge session unavailable: " + err.Error())
	}
	return t, nil
}

type TrackRequest struct {
	auth.AuthInput
	Body struct {
		Type string `json:"type" doc:"Action performed by the user" enum:"aqi_check,report_submit,upvote,downvote,quiz_complete,alert_opened,city_view"`
		City string `json:"city,omitempty" doc:"City name, required for city_view"`
	}
}

type TrackResponse struct {
	Body tracker.Result
}

func (h *ProgressHandler) HandleTrack(ctx context.Context, input *TrackRequest) (*TrackResponse, error) {
	t, err := h.trackerFor(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}

	action := tracker.ActionType(input.Body.Type)
	if action == tracker.ActionCityView && input.Body.City == "" {
		return nil, huma.Error400BadRequest("city is required for city_view")
	}

	res := &TrackResponse{}
	res.Body = t.Track(ctx, action, tracker.Payload{City: input.Body.City})
	return res, nil
}

type ProgressResponse struct {
	Body tracker.View
}

func (h *ProgressHandler) HandleProgress(ctx context.Context, input *auth.AuthInput) (*ProgressResponse, error) {
	t, err := h.trackerFor(ctx, *input)
	if err != nil {
		return nil, err
	}
	return &ProgressResponse{Body: t.Progress()}, nil
}

type BadgeStatus struct {
	models.BadgeDefinition
	Progress tracker.BadgeProgress `json:"progress"`
}

type BadgesResponse struct {
	Body struct {
		Badges []BadgeStatus        `json:"badges"`
		Earned []models.EarnedBadge `json:"earned"`
	}
}

// HandleBadges lists the catalog in order with the caller's progress towards
// every badge.
func (h *ProgressHandler) HandleBadges(ctx context.Context, input *auth.AuthInput) (*BadgesResponse, error) {
	t, err := h.trackerFor(ctx, *input)
	if err != nil {
		return nil, err
	}

	all := t.AllBadgeProgress()
	res := &BadgesResponse{}
	res.Body.Badges = make([]BadgeStatus, 0, len(all))
	for _, def := range badges.All() {
		res.Body.Badges = append(res.Body.Badges, BadgeStatus{BadgeDefinition: def, Progress: all[def.ID]})
	}
	res.Body.Earned = t.EarnedBadges()
	return res, nil
}

type BadgeRequest struct {
	ID string `path:"id" doc:"Badge ID"`
}

type BadgeResponse struct {
	Body models.BadgeDefinition
}

func (h *ProgressHandler) HandleBadge(ctx context.Context, input *BadgeRequest) (*BadgeResponse, error) {
	def, ok := badges.GetByID(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("Badge not found")
	}
	return &BadgeResponse{Body: def}, nil
}
