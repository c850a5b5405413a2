package api

import (
	"github.com/gin-gonic/gin"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/health"
)

// Routes 汇总注册路由所需的处理器与依赖
type Routes struct {
	Service        string
	Transcriptions *TranscriptionHandler
	HealthChecker  *health.HealthChecker
	Environment    *EnvironmentHandler
}

// Register 在 r 上注册全部 HTTP 路由
func (rt Routes) Register(r gin.IRouter) {
	r.GET("/health", HandleHealth(rt.Service))

	v1 := r.Group("/api/v1")
	{
		t := v1.Group("/transcriptions")
		t.POST("", rt.Transcriptions.Create)
		t.GET("", rt.Transcriptions.List)
		t.GET("/:id", rt.Transcriptions.Get)
		t.GET("/:id/vtt", rt.Transcriptions.VTT)
		t.GET("/:id/text", rt.Transcriptions.Text)
		t.DELETE("/:id", rt.Transcriptions.Delete)

		v1.GET("/services/recognizer/health", HandleRecognizerHealth(rt.HealthChecker))
		if rt.Environment != nil {
			v1.GET("/environment", rt.Environment.GetStatus)
		}
	}
}
