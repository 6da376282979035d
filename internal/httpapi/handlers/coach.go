package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/common"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/httpapi/middleware"
	"gorm.io/gorm"
)

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// failErr maps the domain error taxonomy to HTTP statuses at the boundary.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, coach.ErrSessionNotFound):
		fail(c, http.StatusNotFound, "session not found")
	case errors.Is(err, coach.ErrScenarioNotFound):
		fail(c, http.StatusNotFound, "scenario not found")
	case errors.Is(err, coach.ErrNotEnoughConversation):
		fail(c, http.StatusUnprocessableEntity, "not enough conversation to generate feedback")
	case errors.Is(err, coach.ErrUpstream), errors.Is(err, coach.ErrMalformedModelOutput):
		fail(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "not found")
	default:
		rid, _ := c.Get(middleware.RequestIDKey)
		log.Printf("internal error request_id=%v err=%v", rid, err)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListScenarios(c *gin.Context) {
	scenarios, err := h.Repo.ListScenarios(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (h *Handler) GetScenario(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid scenario id")
		return
	}
	sc, err := h.Repo.GetScenario(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failErr(c, coach.ErrScenarioNotFound)
			return
		}
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

type createSessionReq struct {
	ScenarioID uint64 `json:"scenario_id" binding:"required"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	if _, err := h.Repo.GetScenario(c.Request.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failErr(c, coach.ErrScenarioNotFound)
			return
		}
		failErr(c, err)
		return
	}

	sid, err := common.NewULID()
	if err != nil {
		failErr(c, err)
		return
	}

	sess := &coach.Session{
		SessionID:  sid,
		UserID:     uid,
		ScenarioID: req.ScenarioID,
		Status:     coach.SessionActive,
		StartedAt:  time.Now(),
	}
	if err := h.Repo.CreateSession(c.Request.Context(), sess); err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ownedSession loads the session and hides sessions owned by other users.
func (h *Handler) ownedSession(c *gin.Context, uid uint64) (*coach.Session, bool) {
	sess, err := h.Repo.GetSessionBySessionID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failErr(c, coach.ErrSessionNotFound)
			return nil, false
		}
		failErr(c, err)
		return nil, false
	}
	if sess.UserID != uid {
		failErr(c, coach.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}

func (h *Handler) GetSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, ok := h.ownedSession(c, uid)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) AbandonSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, ok := h.ownedSession(c, uid)
	if !ok {
		return
	}
	now := time.Now()
	if err := h.Repo.UpdateSessionStatus(c.Request.Context(), sess.SessionID, coach.SessionAbandoned, &now); err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sess.SessionID, "status": coach.SessionAbandoned})
}

type postMessageReq struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// PostMessage persists one turn. The conversation endpoint never writes
// messages itself, so the front end records both the user turn and the
// returned assistant turn here.
func (h *Handler) PostMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Role != "user" && req.Role != "assistant" {
		fail(c, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	sess, ok := h.ownedSession(c, uid)
	if !ok {
		return
	}

	msg := &coach.Message{
		SessionID: sess.SessionID,
		UserID:    uid,
		Role:      req.Role,
		Content:   req.Content,
	}
	if err := h.Repo.InsertMessage(c.Request.Context(), msg); err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, ok := h.ownedSession(c, uid)
	if !ok {
		return
	}
	msgs, err := h.Repo.ListMessagesAsc(c.Request.Context(), sess.SessionID)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type chatReq struct {
	SessionID   string `json:"session_id" binding:"required"`
	UserMessage string `json:"user_message"`
	IsInitial   bool   `json:"is_initial"`
}

func (h *Handler) Chat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.IsInitial && strings.TrimSpace(req.UserMessage) == "" {
		fail(c, http.StatusBadRequest, "user_message required unless is_initial")
		return
	}

	reply, err := h.ConvSvc.Reply(c.Request.Context(), uid, req.SessionID, req.UserMessage, req.IsInitial)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

type feedbackReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (h *Handler) GenerateFeedback(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	fb, err := h.FeedbackSvc.Generate(c.Request.Context(), uid, req.SessionID)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *Handler) GetSessionFeedback(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, ok := h.ownedSession(c, uid)
	if !ok {
		return
	}
	fbs, err := h.Repo.ListFeedbackBySessionID(c.Request.Context(), sess.SessionID)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": fbs})
}

func (h *Handler) GenerateFeedbackAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.Rabbit == nil {
		fail(c, http.StatusServiceUnavailable, "async feedback unavailable")
		return
	}

	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		fail(c, http.StatusBadRequest, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	// Session must belong to the caller before a job is accepted.
	sess, err := h.Repo.GetSessionBySessionID(c.Request.Context(), req.SessionID)
	if err != nil || sess.UserID != uid {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			failErr(c, err)
			return
		}
		failErr(c, coach.ErrSessionNotFound)
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		failErr(c, err)
		return
	}

	j := &coach.FeedbackJob{
		ID:             jobID,
		UserID:         uid,
		SessionID:      req.SessionID,
		IdempotencyKey: idempoKeyPtr,
		Status:         coach.JobQueued,
	}

	job, created, err := h.Repo.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		rid, _ := c.Get(middleware.RequestIDKey)
		log.Printf("create feedback job failed request_id=%v session_id=%s err=%v", rid, req.SessionID, err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			rid, _ := c.Get(middleware.RequestIDKey)
			log.Printf("publish feedback job failed request_id=%v job_id=%s err=%v", rid, job.ID, err)
			fail(c, http.StatusInternalServerError, "enqueue failed")
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

func (h *Handler) GetFeedbackJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		fail(c, http.StatusBadRequest, "job_id required")
		return
	}

	j, err := h.Repo.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "job not found")
			return
		}
		failErr(c, err)
		return
	}
	if j.UserID != uid {
		// hide existence
		fail(c, http.StatusNotFound, "job not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": gin.H{
			"id":                 j.ID,
			"session_id":         j.SessionID,
			"status":             j.Status,
			"result_feedback_id": j.ResultFeedbackID,
			"error":              j.Error,
			"created_at":         j.CreatedAt,
			"updated_at":         j.UpdatedAt,
		},
	})
}
