package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/airbadge/internal/auth"
	"github.com/gdg-garage/airbadge/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncHandler is the authoritative progress store the sync client talks to.
type SyncHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
	logger      *zap.Logger
}

func NewSyncHandler(db *gorm.DB, authHandler *auth.AuthHandler, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{db: db, authHandler: authHandler, logger: logger}
}

type PushSnapshotRequest struct {
	auth.AuthInput
	RequestID string `header:"X-Request-ID"`
	Body      models.Snapshot
}

type PushSnapshotResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// HandlePush upserts the caller's snapshot. Fields missing from the body keep
// their stored value.
func (h *SyncHandler) HandlePush(ctx context.Context, input *PushSnapshotRequest) (*PushSnapshotResponse, error) {
	userID, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.UserProgress
		if err := tx.FirstOrInit(&record, models.UserProgress{UserID: userID}).Error; err != nil {
			return err
		}

		if input.Body.Badges != nil {
			record.Badges = datatypes.NewJSONSlice(input.Body.Badges)
		} else if record.Badges == nil {
			record.Badges = datatypes.NewJSONSlice([]models.EarnedBadge{})
		}
		if input.Body.Progress != nil {
			record.Progress = datatypes.NewJSONType(*input.Body.Progress)
		} else if record.ID == 0 {
			record.Progress = datatypes.NewJSONType(models.DefaultProgress())
		}

		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to store progress: " + err.Error())
	}

	h.logger.Debug("Progress snapshot stored",
		zap.Uint("user_id", userID),
		zap.String("request_id", input.RequestID),
		zap.Int("badges", len(input.Body.Badges)))

	res := &PushSnapshotResponse{}
	res.Body.Success = true
	return res, nil
}

type FetchSnapshotResponse struct {
	Body models.Snapshot
}

func (h *SyncHandler) HandleFetch(ctx context.Context, input *auth.AuthInput) (*FetchSnapshotResponse, error) {
	userID, err := h.authHandler.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}

	var record models.UserProgress
	err = h.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("No progress stored")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load progress: " + err.Error())
	}

	return &FetchSnapshotResponse{Body: record.Snapshot()}, nil
}
