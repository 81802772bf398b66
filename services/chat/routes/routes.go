// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the chat service's HTTP surface.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wealthwarriors/wealthcoach/services/chat/handlers"
	"github.com/wealthwarriors/wealthcoach/services/chat/middleware"
)

// SetupRoutes registers all endpoints on router.
//
// The WebSocket endpoint is registered without the auth middleware because
// its authentication is in-band: browsers cannot set an Authorization
// header on a WebSocket upgrade, so the token arrives as the first frame.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(deps))

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(deps.Auth))
		{
			authed.POST("/chat", handlers.HandleChat(deps))
			authed.GET("/chat/stats", handlers.HandleStats(deps))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
