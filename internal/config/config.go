package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/John-Robertt/LocPack/internal/assetdb"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 locpack.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// I18NFileName 主数据文件在导出目录下的固定文件名。
	I18NFileName = "i18n.json"
	// DefaultRestoreBatchSize 回迁批大小的内置默认值。
	DefaultRestoreBatchSize = 10
	// DefaultBatchPause 批与批之间的停顿（让文件系统与编辑器喘口气）。
	DefaultBatchPause = 100 * time.Millisecond
	// DefaultUnloadTimeout 卸载时等待后台回迁收尾的上限。
	DefaultUnloadTimeout = 30 * time.Second
	// DefaultLogLevel 日志级别默认值。
	DefaultLogLevel = "info"
)

// CLIArgs 只包含 CLI 暴露的配置项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --no-color 必须能覆盖 log_color=true。
type CLIArgs struct {
	Path string

	ExportDir    string
	ExportDirSet bool

	StagingDir    string
	StagingDirSet bool

	LogLevel    string
	LogLevelSet bool

	LogColor    bool
	LogColorSet bool
}

// FileConfig 对应 locpack.json 的解析结构。
// 数值项用指针区分“未写”与“写了零值”。
type FileConfig struct {
	Path             string `json:"path"`
	ExportDir        string `json:"export_dir"`
	StagingDir       string `json:"staging_dir"`
	RestoreBatchSize *int   `json:"restore_batch_size"`
	BatchPauseMS     *int64 `json:"batch_pause_ms"`
	UnloadTimeoutMS  *int64 `json:"unload_timeout_ms"`
	LogLevel         string `json:"log_level"`
	LogColor         *bool  `json:"log_color"`
}

// EnvConfig 是环境变量层，逐项对应 FileConfig。
// CI 里常用它代替配置文件（LOCPACK_PATH=… locpack pre）。
type EnvConfig struct {
	Path             string `env:"LOCPACK_PATH"`
	ExportDir        string `env:"LOCPACK_EXPORT_DIR"`
	StagingDir       string `env:"LOCPACK_STAGING_DIR"`
	RestoreBatchSize *int   `env:"LOCPACK_RESTORE_BATCH_SIZE"`
	BatchPauseMS     *int64 `env:"LOCPACK_BATCH_PAUSE_MS"`
	UnloadTimeoutMS  *int64 `env:"LOCPACK_UNLOAD_TIMEOUT_MS"`
	LogLevel         string `env:"LOCPACK_LOG_LEVEL"`
	LogColor         *bool  `env:"LOCPACK_LOG_COLOR"`
}

// Effective 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type Effective struct {
	Path string

	// ExportDirURL 主数据文件所在目录的规范 URL。
	// 空串表示未配置：预构建阶段按“配置缺失”跳过，不算加载错误。
	ExportDirURL string
	StagingDir   string

	RestoreBatchSize int
	BatchPause       time.Duration
	UnloadTimeout    time.Duration

	LogLevel string
	LogColor bool
}

// FileURL 返回主数据文件的规范 URL；export_dir 未配置时为空串。
func (e Effective) FileURL() string {
	if e.ExportDirURL == "" {
		return ""
	}
	return e.ExportDirURL + "/" + I18NFileName
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置，然后合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 或 LOCPACK_PATH 提供了项目根：尝试读取 <根>/locpack.json（可选）
// 2) 两者都没给：必须读取 <cwd>/locpack.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 内置默认。
func LoadEffective(cwd string, cli CLIArgs) (Effective, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var ec EnvConfig
	if err := env.Parse(&ec); err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: "environment", Err: err}
	}

	rootArg := strings.TrimSpace(cli.Path)
	if rootArg == "" {
		rootArg = strings.TrimSpace(ec.Path)
	}

	if rootArg != "" {
		// 项目根已给出：配置文件可选，位置固定在 <根>/locpack.json。
		absPath := absCleanFrom(cwdAbs, rootArg)
		cfgPath := filepath.Join(absPath, "locpack.json")
		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absPath, cli, ec, fc, cfgPath)
	}

	// 没给项目根：必须读取 <cwd>/locpack.json，且其中必须包含 path。
	cfgPath := filepath.Join(cwdAbs, "locpack.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return Effective{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return Effective{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}
	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, ec, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, ec EnvConfig, fc FileConfig, cfgPath string) (Effective, error) {
	// export_dir：CLI > env > config；允许为空（预构建按配置缺失跳过）。
	exportDir := fc.ExportDir
	if strings.TrimSpace(ec.ExportDir) != "" {
		exportDir = ec.ExportDir
	}
	if cli.ExportDirSet {
		exportDir = cli.ExportDir
	}
	exportDir = strings.TrimSpace(exportDir)
	if exportDir != "" {
		canonical, _, err := assetdb.NormalizeURL(exportDir)
		if err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("export_dir 无效：%w", err)}
		}
		exportDir = canonical
	}

	// staging_dir：CLI > env > config > 默认 <path>/temp/locpack/moved_assets。
	stagingDir := fc.StagingDir
	if strings.TrimSpace(ec.StagingDir) != "" {
		stagingDir = ec.StagingDir
	}
	if cli.StagingDirSet {
		stagingDir = cli.StagingDir
	}
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		stagingDir = filepath.Join(absPath, "temp", "locpack", "moved_assets")
	} else {
		stagingDir = absCleanFrom(absPath, stagingDir)
	}

	// restore_batch_size：env > config > 默认；范围 [1, 64]，超出截断。
	batch := DefaultRestoreBatchSize
	if fc.RestoreBatchSize != nil {
		batch = *fc.RestoreBatchSize
	}
	if ec.RestoreBatchSize != nil {
		batch = *ec.RestoreBatchSize
	}
	if batch < 1 {
		batch = 1
	}
	if batch > 64 {
		batch = 64
	}

	pause := DefaultBatchPause
	if fc.BatchPauseMS != nil {
		pause = time.Duration(*fc.BatchPauseMS) * time.Millisecond
	}
	if ec.BatchPauseMS != nil {
		pause = time.Duration(*ec.BatchPauseMS) * time.Millisecond
	}
	if pause < 0 {
		pause = 0
	}

	timeout := DefaultUnloadTimeout
	if fc.UnloadTimeoutMS != nil {
		timeout = time.Duration(*fc.UnloadTimeoutMS) * time.Millisecond
	}
	if ec.UnloadTimeoutMS != nil {
		timeout = time.Duration(*ec.UnloadTimeoutMS) * time.Millisecond
	}
	if timeout < 0 {
		timeout = 0
	}

	// log_level：CLI > env > config > 默认 info。
	level := DefaultLogLevel
	if strings.TrimSpace(fc.LogLevel) != "" {
		level = fc.LogLevel
	}
	if strings.TrimSpace(ec.LogLevel) != "" {
		level = ec.LogLevel
	}
	if cli.LogLevelSet {
		level = cli.LogLevel
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if err := validateLogLevel(level); err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	color := true
	if fc.LogColor != nil {
		color = *fc.LogColor
	}
	if ec.LogColor != nil {
		color = *ec.LogColor
	}
	if cli.LogColorSet {
		color = cli.LogColor
	}

	return Effective{
		Path:             absPath,
		ExportDirURL:     exportDir,
		StagingDir:       stagingDir,
		RestoreBatchSize: batch,
		BatchPause:       pause,
		UnloadTimeout:    timeout,
		LogLevel:         level,
		LogColor:         color,
	}, nil
}

func validateLogLevel(l string) error {
	switch l {
	case "debug", "info", "warn", "error":
		return nil
	case "":
		return fmt.Errorf("log_level 不能为空")
	default:
		return fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", l)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
