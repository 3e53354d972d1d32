package notifier

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/airbadge/internal/badges"
	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/tracker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotConfigured = errors.New("discord notifier not configured")

type Notifier interface {
	NotifyBadgeEarned(user models.User, badge models.EarnedBadge) error
}

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier announces earned badges in a Discord channel.
type DiscordNotifier struct {
	session   messageSender
	channelID string
	db        *gorm.DB
	logger    *zap.Logger
}

func NewDiscordNotifier(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*DiscordNotifier, error) {
	if cfg.DiscordBotToken == "" || cfg.DiscordNotificationsChannelID == "" {
		return nil, ErrNotConfigured
	}

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordNotifier{
		session:   session,
		channelID: cfg.DiscordNotificationsChannelID,
		db:        db,
		logger:    logger,
	}, nil
}

func (n *DiscordNotifier) NotifyBadgeEarned(user models.User, badge models.EarnedBadge) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, formatBadgeMessage(user, badge))
	if err != nil {
		n.logger.Error("Failed to send discord message", zap.Error(err))
		return err
	}

	return nil
}

// HandleEvent is a tracker subscriber. Messages are sent in the background so
// the tracker is never blocked on Discord.
func (n *DiscordNotifier) HandleEvent(ev tracker.Event) {
	if ev.Type != tracker.EventBadgeEarned {
		return
	}

	id, err := strconv.ParseUint(ev.UserID, 10, 64)
	if err != nil {
		n.logger.Warn("Badge earned by non-numeric user", zap.String("user_id", ev.UserID))
		return
	}

	go func() {
		var user models.User
		if err := n.db.First(&user, uint(id)).Error; err != nil {
			n.logger.Error("Failed to load user for badge announcement",
				zap.String("user_id", ev.UserID), zap.Error(err))
			return
		}
		n.NotifyBadgeEarned(user, ev.Badge)
	}()
}

func formatBadgeMessage(user models.User, badge models.EarnedBadge) string {
	icon := "🏅"
	description := ""
	if def, ok := badges.GetByID(badge.ID); ok {
		icon = def.Icon
		description = fmt.Sprintf("\n*%s*", def.Description)
	}

	return fmt.Sprintf("%s **Badge Earned**\n**User:** %s\n**Badge:** %s%s\n**Progress:** %d",
		icon,
		user.Mention(),
		badge.Name,
		description,
		badge.ProgressAtAward,
	)
}
