package http

import (
	"net/http"
	"slices"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID domain.UserID    `json:"receiverId"`
	GroupID    domain.GroupID   `json:"groupId"`
	Text       string           `json:"text"`
	MediaType  domain.MediaType `json:"mediaType"`
	MediaURL   string           `json:"mediaUrl"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type editRequest struct {
	Text string `json:"text"`
}

type groupRequest struct {
	Name    string          `json:"name"`
	Members []domain.UserID `json:"members"`
}

func (s *Server) messagesEnabled(c *gin.Context) bool {
	if s.orch.Messages == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging disabled"})
		return false
	}
	return true
}

func (s *Server) sendMessage(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	m, err := s.orch.Messages.SendMessage(c.Request.Context(), &domain.Message{
		SenderID:   currentUser(c),
		ReceiverID: req.ReceiverID,
		GroupID:    req.GroupID,
		Text:       req.Text,
		MediaType:  req.MediaType,
		MediaURL:   req.MediaURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) addReaction(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	m, err := s.orch.Messages.AddReaction(c.Request.Context(), domain.MessageID(c.Param("id")), currentUser(c), req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) editMessage(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	m, err := s.orch.Messages.EditMessage(c.Request.Context(), domain.MessageID(c.Param("id")), currentUser(c), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) deleteMessage(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	m, err := s.orch.Messages.DeleteMessage(c.Request.Context(), domain.MessageID(c.Param("id")), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// putGroup creates or replaces a group; the caller is always a member.
func (s *Server) putGroup(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	if s.groups == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "groups disabled"})
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	g := domain.Group{ID: domain.GroupID(c.Param("id")), Name: req.Name}
	if !slices.Contains(req.Members, currentUser(c)) {
		req.Members = append(req.Members, currentUser(c))
	}
	for _, raw := range req.Members {
		uid, err := domain.NewUserID(string(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !g.HasMember(uid) {
			g.Members = append(g.Members, uid)
		}
	}

	ctx := c.Request.Context()
	if existing, err := s.orch.Messages.Store.FindGroup(ctx, g.ID); err == nil && !existing.HasMember(currentUser(c)) {
		writeError(c, domain.ErrPermissionDenied)
		return
	}
	if err := s.groups.PutGroup(ctx, g); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) getGroup(c *gin.Context) {
	if !s.messagesEnabled(c) {
		return
	}
	g, err := s.orch.Messages.Store.FindGroup(c.Request.Context(), domain.GroupID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	if !g.HasMember(currentUser(c)) {
		writeError(c, domain.ErrPermissionDenied)
		return
	}
	c.JSON(http.StatusOK, g)
}
