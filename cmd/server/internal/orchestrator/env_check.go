package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
)

// EnvironmentStatus 表示整体环境状态
type EnvironmentStatus struct {
	Ready    bool               `json:"ready"`
	Issues   []string           `json:"issues"`
	Warnings []string           `json:"warnings"`
	Details  EnvironmentDetails `json:"details"`
}

// EnvironmentDetails 包含各组件的详细状态
type EnvironmentDetails struct {
	Credentials CredentialStatus `json:"credentials"`
	Recognizer  BackendStatus    `json:"recognizer"`
	FFmpeg      ToolStatus       `json:"ffmpeg"`
	WorkDir     DirStatus        `json:"work_dir"`
}

// CredentialStatus 表示 Cloudflare 凭据配置状态
type CredentialStatus struct {
	AccountConfigured bool   `json:"account_configured"`
	TokenConfigured   bool   `json:"token_configured"`
	Masked            string `json:"masked,omitempty"`
}

// BackendStatus 表示识别后端状态
type BackendStatus struct {
	Reachable bool   `json:"reachable"`
	Name      string `json:"name"`
	Latency   string `json:"latency,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ToolStatus 表示命令行工具状态
type ToolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DirStatus 表示切片工作目录状态
type DirStatus struct {
	Path     string `json:"path"`
	Writable bool   `json:"writable"`
	Error    string `json:"error,omitempty"`
}

// EnvironmentInput 是环境检查所需的配置
type EnvironmentInput struct {
	AccountID  string
	APIToken   string
	FFmpegPath string
	WorkDir    string
	Recognizer whisper.Recognizer // 为 nil 时跳过后端探测
}

// CheckEnvironment 执行完整的环境检查
// FFmpeg 缺失只记为警告：切分失败时流水线会回退为整文件提交
func CheckEnvironment(ctx context.Context, in EnvironmentInput) *EnvironmentStatus {
	status := &EnvironmentStatus{
		Ready:    true,
		Issues:   []string{},
		Warnings: []string{},
	}

	// 1. 检查凭据
	status.Details.Credentials = CredentialStatus{
		AccountConfigured: in.AccountID != "",
		TokenConfigured:   in.APIToken != "",
	}
	if in.AccountID == "" {
		status.Ready = false
		status.Issues = append(status.Issues, "CLOUDFLARE_ACCOUNT_ID 环境变量未配置")
	}
	if in.APIToken == "" {
		status.Ready = false
		status.Issues = append(status.Issues, "CLOUDFLARE_API_TOKEN 环境变量未配置")
	} else {
		status.Details.Credentials.Masked = maskToken(in.APIToken)
	}

	// 2. 检查识别后端
	if in.Recognizer != nil {
		backend := checkRecognizer(ctx, in.Recognizer)
		status.Details.Recognizer = backend
		if !backend.Reachable {
			status.Ready = false
			status.Issues = append(status.Issues, fmt.Sprintf("识别后端不可用: %s", backend.Error))
		}
	}

	// 3. 检查 FFmpeg
	tool := checkFFmpeg(ctx, in.FFmpegPath)
	status.Details.FFmpeg = tool
	if !tool.Available {
		status.Warnings = append(status.Warnings, fmt.Sprintf("FFmpeg 不可用，大文件将不切分直接提交: %s", tool.Error))
	}

	// 4. 检查工作目录
	dir := checkWorkDir(in.WorkDir)
	status.Details.WorkDir = dir
	if !dir.Writable {
		status.Ready = false
		status.Issues = append(status.Issues, fmt.Sprintf("工作目录不可写: %s", dir.Error))
	}

	return status
}

// maskToken 遮蔽 Token 的中间部分
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// checkRecognizer 探测识别后端健康状态
func checkRecognizer(ctx context.Context, r whisper.Recognizer) BackendStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	ok, err := r.HealthCheck(ctx)
	latency := time.Since(start)

	if err != nil || !ok {
		msg := "health check returned false"
		if err != nil {
			msg = err.Error()
		}
		return BackendStatus{Name: r.Name(), Error: msg}
	}
	return BackendStatus{
		Reachable: true,
		Name:      r.Name(),
		Latency:   fmt.Sprintf("%dms", latency.Milliseconds()),
	}
}

// checkFFmpeg 检查 FFmpeg 可用性
func checkFFmpeg(ctx context.Context, bin string) ToolStatus {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}

	// 第一行形如 "ffmpeg version 6.1.1 Copyright ..."
	version := "unknown"
	if lines := strings.SplitN(string(output), "\n", 2); len(lines) > 0 {
		if parts := strings.Fields(lines[0]); len(parts) >= 3 {
			version = parts[2]
		}
	}
	return ToolStatus{Available: true, Version: version}
}

// checkWorkDir 确认工作目录存在（不存在则创建）且可写
func checkWorkDir(dir string) DirStatus {
	status := DirStatus{Path: dir}
	if dir == "" {
		status.Error = "未配置"
		return status
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		status.Error = err.Error()
		return status
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	name := probe.Name()
	probe.Close()
	_ = os.Remove(filepath.Clean(name))
	status.Writable = true
	return status
}
