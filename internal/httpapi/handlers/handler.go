package handlers

import (
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/config"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/store/rabbitmq"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Repo        *coach.Repo
	ConvSvc     *coach.ConversationService
	FeedbackSvc *coach.FeedbackService

	// Rabbit may be nil when the broker is unavailable; only the async
	// feedback endpoint depends on it.
	Rabbit *rabbitmq.Publisher
}

func NewHandler(db *gorm.DB, cfg config.Config, provider ai.Provider, cache coach.ScenarioCache, rabbit *rabbitmq.Publisher) *Handler {
	repo := coach.NewRepo(db)
	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Repo:        repo,
		ConvSvc:     coach.NewConversationService(repo, provider, cache),
		FeedbackSvc: coach.NewFeedbackService(repo, provider, cache),
		Rabbit:      rabbit,
	}
}
