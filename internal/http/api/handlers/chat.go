package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/chat"
	"github.com/inkawebai/inkaweb-backend/internal/llm"
	"github.com/inkawebai/inkaweb-backend/internal/mail"
	"github.com/inkawebai/inkaweb-backend/internal/models"
)

// systemPrompt steers the assistant toward requirements gathering. The
// model is expected to emit the navigation and confirmation markers that
// markers.go strips before the reply reaches the client.
const systemPrompt = "You are a helpful assistant. Collect project requirements step by step. Ask for confirmation before proceeding."

// ChatHandler proxies conversations to the language model and persists
// them per user.
type ChatHandler struct {
	db     *gorm.DB
	llm    *llm.Client
	mailer mail.Sender
	inbox  string
}

// NewChatHandler constructs a ChatHandler. inbox receives collected
// requirements when a conversation is confirmed.
func NewChatHandler(db *gorm.DB, llmClient *llm.Client, mailer mail.Sender, inbox string) *ChatHandler {
	if mailer == nil {
		mailer = mail.NopSender{}
	}
	return &ChatHandler{db: db, llm: llmClient, mailer: mailer, inbox: inbox}
}

type chatRequest struct {
	Messages   []chat.Turn `json:"messages"`
	InstanceID uint64      `json:"instanceId"`
}

// Chat forwards the conversation to the model, post-processes the reply,
// and appends the exchange to the owning chat instance.
func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "requiresLogin": true})
		return
	}

	var req chatRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: messages array required"})
		return
	}

	formatted := make([]llm.Message, 0, len(req.Messages)+1)
	formatted = append(formatted, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range req.Messages {
		role := llm.RoleAssistant
		if turn.Sender == models.SenderUser {
			role = llm.RoleUser
		}
		formatted = append(formatted, llm.Message{Role: role, Content: turn.Text})
	}

	reply, errComplete := h.llm.Complete(c.Request.Context(), formatted)
	if errComplete != nil {
		h.respondCompletionError(c, errComplete)
		return
	}
	if reply == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no response from AI"})
		return
	}

	finalMessage, navigateURL, shouldNavigate := chat.ExtractNavigation(reply)
	finalMessage, confirmed := chat.ExtractConfirmation(finalMessage)

	// Persistence is best-effort; the reply is returned even when the
	// conversation cannot be saved.
	instance, errInstance := h.resolveInstance(c.Request.Context(), user.ID, req.InstanceID)
	if errInstance != nil {
		log.Errorf("resolve chat instance failed: %v", errInstance)
		instance = nil
	}

	if instance != nil {
		if lastUser, okLast := chat.LastUserTurn(req.Messages); okLast {
			userMessage := models.ChatMessage{
				ChatInstanceID: instance.ID,
				Sender:         models.SenderUser,
				Text:           lastUser.Text,
			}
			if errSave := h.db.WithContext(c.Request.Context()).Create(&userMessage).Error; errSave != nil {
				log.Warnf("save user message failed: %v", errSave)
			}

			if instance.Title == "" || instance.Title == models.DefaultChatTitle {
				if firstUser, okFirst := chat.FirstUserTurn(req.Messages); okFirst {
					instance.Title = chat.ExtractTitle(firstUser.Text)
				}
			}
		}

		if confirmed {
			turns := req.Messages
			projectName := chat.ProjectName(turns)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				msg := mail.RequirementsEmail(projectName, chat.FormatRequirements(turns))
				msg.To = h.inbox
				if errSend := h.mailer.Send(ctx, msg); errSend != nil {
					log.Warnf("send requirements email failed: %v", errSend)
				}
			}()
		}

		botMessage := models.ChatMessage{
			ChatInstanceID: instance.ID,
			Sender:         models.SenderBot,
			Text:           finalMessage,
		}
		if errSave := h.db.WithContext(c.Request.Context()).Create(&botMessage).Error; errSave != nil {
			log.Warnf("save bot message failed: %v", errSave)
		}

		touch := map[string]any{"title": instance.Title, "updated_at": time.Now()}
		if errSave := h.db.WithContext(c.Request.Context()).Model(instance).Updates(touch).Error; errSave != nil {
			log.Warnf("update chat instance failed: %v", errSave)
		}
	}

	out := gin.H{
		"message":        finalMessage,
		"shouldNavigate": shouldNavigate,
		"navigateUrl":    nil,
		"instanceId":     nil,
	}
	if instance != nil {
		out["instanceId"] = instance.ID
	}
	if shouldNavigate {
		out["navigateUrl"] = navigateURL
	}
	c.JSON(http.StatusOK, out)
}

// resolveInstance loads the requested instance when it belongs to the
// user, otherwise starts a fresh one.
func (h *ChatHandler) resolveInstance(ctx context.Context, userID, instanceID uint64) (*models.ChatInstance, error) {
	if instanceID != 0 {
		var instance models.ChatInstance
		errFind := h.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", instanceID, userID).
			First(&instance).Error
		if errFind == nil {
			return &instance, nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errFind
		}
	}

	instance := models.ChatInstance{UserID: userID, Title: models.DefaultChatTitle}
	if errCreate := h.db.WithContext(ctx).Create(&instance).Error; errCreate != nil {
		return nil, errCreate
	}
	return &instance, nil
}

// respondCompletionError maps model failures onto client-facing statuses.
func (h *ChatHandler) respondCompletionError(c *gin.Context, err error) {
	if errors.Is(err, llm.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI service is not configured"})
		return
	}
	switch code := llm.StatusCode(err); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI service authentication failed"})
	case code == http.StatusTooManyRequests:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "AI service is rate limited, please try again shortly"})
	case code >= http.StatusInternalServerError:
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI service is unavailable"})
	default:
		log.Errorf("chat completion failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to contact AI service"})
	}
}
