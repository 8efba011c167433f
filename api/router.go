package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(s *Server) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure appropriately in production
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	router.GET("/health", s.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/probe", s.Probe)

		api.POST("/transfer", s.StartTransfer)
		api.GET("/status/:taskID", s.GetStatus)
		api.GET("/tasks", s.ListTasks)
		api.DELETE("/tasks/:taskID", s.CancelTask)
	}

	return router
}
