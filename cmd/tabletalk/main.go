package main

import (
	"os"

	"github.com/dkoval/tabletalk"
	"github.com/dkoval/tabletalk/config"
	"github.com/dkoval/tabletalk/engine"
	"github.com/dkoval/tabletalk/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Missing .env is fine; environment variables may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	tt, err := tabletalk.New(cfg)
	if err != nil {
		log.Log.Errorf("Failed to initialize: %v", err)
		os.Exit(1)
	}
	defer tt.Close()

	tt.UseLLMConfig(engine.LLMConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})

	router := gin.Default()
	tt.RegisterRoutes(router)

	address := cfg.GetAddress()
	log.Log.Infof("Starting HTTP server on %s", address)
	log.Log.Infof("  POST /chat        - one conversational turn (user_id, message)")
	log.Log.Infof("  POST /register    - register a user (user_id, username)")
	log.Log.Infof("  POST /clear       - reset a user's conversation (user_id)")
	log.Log.Infof("  GET  /health      - health check")
	log.Log.Infof("  GET  /debug/usage - tool usage chart")

	if err := router.Run(address); err != nil {
		log.Log.Errorf("HTTP server failed: %v", err)
		os.Exit(1)
	}
}
