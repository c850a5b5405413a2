package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/health"
	"github.com/houzhh15/scribe/pkg/metrics"
)

// HandleHealth 进程存活探针
// GET /health
func HandleHealth(service string) gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": service,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}
}

// HandleRecognizerHealth 返回识别后端的周期性健康检查结果
// GET /api/v1/services/recognizer/health
//
// 响应格式:
//
//	{
//	  "success": true,
//	  "data": {
//	    "service": "cloudflare-workers-ai",
//	    "is_healthy": true,
//	    "last_check_time": "2025-10-11T02:20:00Z",
//	    "consecutive_fails": 0,
//	    "error_message": ""
//	  }
//	}
func HandleRecognizerHealth(healthChecker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthChecker == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "recognizer health checker not initialized",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    healthChecker.GetStatus(),
		})
	}
}

// EnvironmentHandler 处理环境检查请求，缓存上一次结果
type EnvironmentHandler struct {
	input  orchestrator.EnvironmentInput
	mu     sync.Mutex
	cached *orchestrator.EnvironmentStatus
}

// NewEnvironmentHandler 创建新的环境检查处理器
func NewEnvironmentHandler(in orchestrator.EnvironmentInput) *EnvironmentHandler {
	return &EnvironmentHandler{input: in}
}

// GetStatus 返回环境检查结果，未就绪时返回 503
// GET /api/v1/environment
// 支持 force=true 查询参数强制重新检查
func (h *EnvironmentHandler) GetStatus(c *gin.Context) {
	force := c.Query("force") == "true"

	h.mu.Lock()
	if force || h.cached == nil {
		h.cached = orchestrator.CheckEnvironment(c.Request.Context(), h.input)
		metrics.SetEnvironmentReady(h.cached.Ready)
	}
	status := h.cached
	h.mu.Unlock()

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
