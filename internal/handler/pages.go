package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginPage handles GET /
func LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":   "login",
		"login":  "/v1/auth/login",
		"signup": "/v1/auth/signup",
	})
}

// DashboardPage handles GET /dashboard
func DashboardPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":   "dashboard",
		"state":  "/v1/dashboard",
		"events": "/v1/dashboard/events",
	})
}
