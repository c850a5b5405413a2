package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/houzhh15/scribe/cmd/server/internal/jobs"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/logger"
)

// SupportedExtensions 允许上传的音频/视频容器扩展名
var SupportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
	".mp4":  true,
	".opus": true,
	".aac":  true,
}

// JobRunner 提交与取消后台转写任务，由 jobs.Runner 实现
type JobRunner interface {
	Submit(ctx context.Context, job *jobs.Job, audioPath string) error
	Cancel(ctx context.Context, id string) error
}

// TranscriptionHandler 处理 /api/v1/transcriptions 下的请求
type TranscriptionHandler struct {
	store          jobs.Store
	runner         JobRunner
	uploadDir      string
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewTranscriptionHandler 创建处理器，上传文件保存在 uploadDir
func NewTranscriptionHandler(store jobs.Store, runner JobRunner, uploadDir string, maxUploadBytes int64, log *slog.Logger) *TranscriptionHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &TranscriptionHandler{
		store:          store,
		runner:         runner,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		logger:         log.With("component", "api"),
	}
}

// Create 接收音频上传并创建转写任务
// POST /api/v1/transcriptions
func (h *TranscriptionHandler) Create(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		// 为 multipart 头部预留 1MB
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(c, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		badRequestResponse(c, fmt.Sprintf("missing file: %v", err))
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		errorResponse(c, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !SupportedExtensions[ext] {
		errorResponse(c, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	lang, err := whisper.NormalizeLanguage(c.PostForm("language"))
	if err != nil {
		badRequestResponse(c, err.Error())
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", slog.String("dir", h.uploadDir), slog.Any("error", err))
		internalErrorResponse(c, "failed to store upload")
		return
	}

	id := uuid.NewString()
	savePath := filepath.Join(h.uploadDir, id+ext)
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		h.logger.Error("failed to save upload", slog.String("path", savePath), slog.Any("error", err))
		internalErrorResponse(c, "failed to store upload")
		return
	}

	job := &jobs.Job{
		ID:       id,
		Filename: filepath.Base(file.Filename),
		Language: lang,
	}
	if err := h.runner.Submit(c.Request.Context(), job, savePath); err != nil {
		_ = os.Remove(savePath)
		h.logger.Error("failed to submit job", slog.String("job_id", id), slog.Any("error", err))
		internalErrorResponse(c, "failed to create job")
		return
	}

	h.logger.Info("transcription job accepted",
		slog.String("job_id", id),
		slog.String("filename", job.Filename),
		slog.Int64("size", file.Size),
		slog.String("language", lang))

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": id,
		"status": jobs.StatusPending,
	})
}

// List 返回任务摘要列表（不含结果），按创建时间倒序
// GET /api/v1/transcriptions
func (h *TranscriptionHandler) List(c *gin.Context) {
	all, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.Any("error", err))
		internalErrorResponse(c, "failed to list jobs")
		return
	}

	summaries := make([]*jobs.Job, 0, len(all))
	for _, j := range all {
		summaries = append(summaries, j.Summary())
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  summaries,
		"total": len(summaries),
	})
}

// Get 返回任务详情，完成后包含转写结果
// GET /api/v1/transcriptions/:id
func (h *TranscriptionHandler) Get(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// VTT 返回 WebVTT 字幕
// GET /api/v1/transcriptions/:id/vtt
func (h *TranscriptionHandler) VTT(c *gin.Context) {
	job, ok := h.completed(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/vtt; charset=utf-8", []byte(job.Result.VTT))
}

// Text 返回格式化后的文本
// GET /api/v1/transcriptions/:id/text
func (h *TranscriptionHandler) Text(c *gin.Context) {
	job, ok := h.completed(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(job.Result.FormattedText))
}

// Delete 取消进行中的任务（记录保留为 cancelled），或删除已结束任务的记录
// DELETE /api/v1/transcriptions/:id
func (h *TranscriptionHandler) Delete(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}

	if !job.Status.Terminal() {
		if err := h.runner.Cancel(c.Request.Context(), job.ID); err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				notFoundResponse(c, "job")
				return
			}
			errorResponse(c, http.StatusConflict, err.Error())
			return
		}
		h.logger.Info("transcription job cancel requested", slog.String("job_id", job.ID))
		c.JSON(http.StatusAccepted, gin.H{
			"job_id": job.ID,
			"status": "cancelling",
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), job.ID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			notFoundResponse(c, "job")
			return
		}
		h.logger.Error("failed to delete job", slog.String("job_id", job.ID), slog.Any("error", err))
		internalErrorResponse(c, "failed to delete job")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TranscriptionHandler) lookup(c *gin.Context) (*jobs.Job, bool) {
	job, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			notFoundResponse(c, "job")
			return nil, false
		}
		h.logger.Error("failed to load job", slog.String("job_id", c.Param("id")), slog.Any("error", err))
		internalErrorResponse(c, "failed to load job")
		return nil, false
	}
	return job, true
}

// completed 仅在任务完成且有结果时返回 true，否则写入 409
func (h *TranscriptionHandler) completed(c *gin.Context) (*jobs.Job, bool) {
	job, ok := h.lookup(c)
	if !ok {
		return nil, false
	}
	if job.Status != jobs.StatusCompleted || job.Result == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job not completed",
			"status": job.Status,
		})
		return nil, false
	}
	return job, true
}
