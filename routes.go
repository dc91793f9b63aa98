package tabletalk

import (
	"bytes"
	"strings"

	"github.com/dkoval/tabletalk/crud"
	"github.com/dkoval/tabletalk/log"
	"github.com/dkoval/tabletalk/visualize"
	"github.com/gin-gonic/gin"
)

// genericErrorReply is what the user sees when the model call itself fails.
// Tool-level failures never reach this path; they are folded into the
// conversation as text.
const genericErrorReply = "Something went wrong while processing your request. Please try again."

// RegisterRoutes registers HTTP routes on the given gin.Engine
// Routes: /chat, /register, /clear, /health, /debug/usage
func (tt *TableTalk) RegisterRoutes(router *gin.Engine) {
	router.POST("/chat", tt.handleChat)
	router.POST("/register", tt.handleRegister)
	router.POST("/clear", tt.handleClear)
	router.GET("/health", tt.handleHealth)
	if tt.cfg.Features.DebugUsageEnabled {
		router.GET("/debug/usage", tt.handleDebugUsage)
	}
}

// chatRequest represents a chat request
type chatRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// handleChat handles chat requests
func (tt *TableTalk) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "user_id and message are required"})
		return
	}

	reply, err := tt.engine.ProcessMessage(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		log.Log.Errorf("[HTTP] ❌ Chat turn failed | UserID: %d | Error: %v", req.UserID, err)
		c.JSON(200, gin.H{"reply": genericErrorReply})
		return
	}

	c.JSON(200, gin.H{"reply": reply})
}

// registerRequest represents a registration request
type registerRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// handleRegister handles user registration requests
func (tt *TableTalk) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "user_id and username are required"})
		return
	}

	// Repeat registration is reported, not treated as a failure.
	if _, err := tt.CRUD().GetUser(req.UserID); err == nil {
		c.JSON(200, gin.H{"status": "already registered"})
		return
	}

	if err := tt.Register(req.UserID, req.Username); err != nil {
		if crud.IsConflict(err) {
			c.JSON(409, gin.H{"error": err.Error()})
			return
		}
		log.Log.Errorf("[HTTP] ❌ Registration failed | UserID: %d | Error: %v", req.UserID, err)
		c.JSON(500, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(200, gin.H{"status": "registered"})
}

// clearRequest represents a context reset request
type clearRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// handleClear handles conversation reset requests
func (tt *TableTalk) handleClear(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "user_id is required"})
		return
	}

	if err := tt.ClearContext(req.UserID); err != nil {
		log.Log.Errorf("[HTTP] ❌ Clear failed | UserID: %d | Error: %v", req.UserID, err)
		c.JSON(500, gin.H{"error": "failed to clear context"})
		return
	}

	c.JSON(200, gin.H{"status": "cleared"})
}

// handleHealth handles health check requests
func (tt *TableTalk) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"version": Version(),
	})
}

// handleDebugUsage renders the tool usage bar chart
func (tt *TableTalk) handleDebugUsage(c *gin.Context) {
	chart := visualize.NewUsageChart(tt.engine.ToolUsage())

	var buf bytes.Buffer
	if err := chart.Render(&buf, "Tool Usage"); err != nil {
		c.JSON(500, gin.H{"error": "failed to render usage chart"})
		return
	}

	content := strings.Replace(buf.String(),
		`<script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>`,
		`<script src="https://cdn.jsdelivr.net/npm/echarts@5/dist/echarts.min.js"></script>`,
		-1)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(200, content)
}
