package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/John-Robertt/m3u8gen/internal/export"
	"github.com/John-Robertt/m3u8gen/internal/site"
)

const (
	// ErrCodeNotFound 表示通过 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是默认配置文件名；同目录下的 m3u8gen.local.json5 会覆盖它。
const FileName = "m3u8gen.json5"

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"

	ObserveCDP         = "cdp"
	ObservePerformance = "performance"

	DefaultConcurrency      = 4
	DefaultPlaceholderTitle = "Video_Clip"
	DefaultCacheDir         = ".m3u8gen"
)

// 时间参数的内置默认值（毫秒）。
const (
	DefaultPollMS        = 200
	DefaultTimeoutMS     = 10000
	DefaultClickSettleMS = 1500
	DefaultRowSettleMS   = 2000
)

// CLIArgs 保留“是否显式指定”的信息，使 --headless=false 这类值能覆盖配置文件。
type CLIArgs struct {
	ConfigPath string

	URL string

	Profile    string
	ProfileSet bool

	Order    string
	OrderSet bool

	OutDir    string
	OutDirSet bool

	Missing    string
	MissingSet bool

	Timeout    time.Duration
	TimeoutSet bool

	RemoteURL    string
	RemoteURLSet bool

	Headless    bool
	HeadlessSet bool

	Observe    string
	ObserveSet bool

	Probe    bool
	ProbeSet bool

	Report    bool
	ReportSet bool
}

// FileConfig 对应 m3u8gen.json5 的解析结构。
//
// 嵌套段使用值类型（而不是指针），mergo 才能逐字段合并；
// 布尔项使用 *bool，才能区分“未写”与“显式 false”。
type FileConfig struct {
	Profile          string          `json:"profile"`
	Selectors        SelectorsConfig `json:"selectors"`
	Order            string          `json:"order"`
	OutDir           string          `json:"out_dir"`
	CacheDir         string          `json:"cache_dir"`
	Downloader       string          `json:"downloader"`
	Missing          string          `json:"missing"`
	Timing           TimingConfig    `json:"timing"`
	Browser          BrowserConfig   `json:"browser"`
	Probe            *bool           `json:"probe"`
	Report           *bool           `json:"report"`
	Concurrency      int             `json:"concurrency"`
	Proxy            ProxyConfig     `json:"proxy"`
	PlaceholderTitle string          `json:"placeholder_title"`
}

// SelectorsConfig 覆盖所选 profile 的单个字段；空值表示沿用 profile。
type SelectorsConfig struct {
	CourseTitle string `json:"course_title"`
	Row         string `json:"row"`
	RowTitle    string `json:"row_title"`
	Pattern     string `json:"pattern"`
	Dedup       string `json:"dedup"`
}

type TimingConfig struct {
	PollMS        int `json:"poll_ms"`
	TimeoutMS     int `json:"timeout_ms"`
	ClickSettleMS int `json:"click_settle_ms"`
	RowSettleMS   int `json:"row_settle_ms"`
}

type BrowserConfig struct {
	RemoteURL   string `json:"remote_url"`
	ExecPath    string `json:"exec_path"`
	UserDataDir string `json:"user_data_dir"`
	Headless    *bool  `json:"headless"`
	Observe     string `json:"observe"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	URL string

	Profile site.Profile
	Order   string

	OutDir   string
	CacheDir string

	Program string
	Missing string

	Poll        time.Duration
	Timeout     time.Duration
	ClickSettle time.Duration
	RowSettle   time.Duration

	Browser Browser

	Probe       bool
	Report      bool
	Concurrency int
	ProxyURL    string

	PlaceholderTitle string
}

// Browser 是规范化后的浏览器配置。RemoteURL 非空时连接已有浏览器，不再启动新进程。
type Browser struct {
	RemoteURL   string
	ExecPath    string
	UserDataDir string
	Headless    bool
	Observe     string
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
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
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

// Defaults 返回内置默认配置（文件里未写的字段由它补齐）。
func Defaults() FileConfig {
	f := false
	return FileConfig{
		Profile:    site.DefaultProfileName,
		Order:      OrderAsc,
		OutDir:     ".",
		CacheDir:   DefaultCacheDir,
		Downloader: export.DefaultProgram,
		Missing:    export.MissingPlaceholder,
		Timing: TimingConfig{
			PollMS:        DefaultPollMS,
			TimeoutMS:     DefaultTimeoutMS,
			ClickSettleMS: DefaultClickSettleMS,
			RowSettleMS:   DefaultRowSettleMS,
		},
		Browser: BrowserConfig{
			Headless: &f,
			Observe:  ObserveCDP,
		},
		Probe:            &f,
		Report:           &f,
		Concurrency:      DefaultConcurrency,
		PlaceholderTitle: DefaultPlaceholderTitle,
	}
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 --config：该文件（或其 .local 变体）必须存在
// 2) 否则读取 <cwd>/m3u8gen.json5（可选，不存在时全部使用默认值）
//
// 覆盖优先级：CLI > <name>.local.json5 > <name>.json5 > 内置默认值。
// 相对路径（out_dir/cache_dir/user_data_dir）以配置文件所在目录为基准。
func LoadEffective(cwd string, cli CLIArgs, reg site.Registry) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}

	fc, exists, err := ReadFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if err := mergo.Merge(&fc, Defaults(), mergo.WithoutDereference); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return merge(filepath.Dir(cfgPath), cli, fc, cfgPath, reg)
}

// ReadFileConfig 读取 path 及其 .local 变体并合并（local 覆盖 base）。
// exists=false 表示两者都不存在（不算错误）。
func ReadFileConfig(path string) (fc FileConfig, exists bool, err error) {
	base, ok, err := readOne(path)
	if err != nil {
		return FileConfig{}, false, err
	}
	fc, exists = base, ok

	localPath := LocalPath(path)
	local, ok, err := readOne(localPath)
	if err != nil {
		return FileConfig{}, false, err
	}
	if ok {
		if err := mergo.Merge(&fc, local, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return FileConfig{}, false, err
		}
		slog.Debug("merged local config override", "local", localPath)
		exists = true
	}
	return fc, exists, nil
}

// LocalPath 返回 <name>.local.<ext>。
func LocalPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

func readOne(path string) (FileConfig, bool, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return FileConfig{}, true, nil
	}
	if err := json5.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, fmt.Errorf("%s：%w", filepath.Base(path), err)
	}
	return fc, true, nil
}

func merge(baseDir string, cli CLIArgs, fc FileConfig, cfgPath string, reg site.Registry) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// 字符串类：CLI > config（config 已带默认值）
	profileName := pick(cli.ProfileSet, cli.Profile, fc.Profile)
	p, ok := reg.Get(profileName)
	if !ok {
		return EffectiveConfig{}, invalid("未知 profile %q（可选：%s）", profileName, strings.Join(reg.Names(), ", "))
	}
	p = p.Override(site.Profile{
		CourseTitleSelector: fc.Selectors.CourseTitle,
		RowSelector:         fc.Selectors.Row,
		RowTitleSelector:    fc.Selectors.RowTitle,
		ResourcePattern:     fc.Selectors.Pattern,
		Dedup:               fc.Selectors.Dedup,
	})
	if err := p.Validate(); err != nil {
		return EffectiveConfig{}, invalid("%w", err)
	}

	order := strings.ToLower(pick(cli.OrderSet, cli.Order, fc.Order))
	if order != OrderAsc && order != OrderDesc {
		return EffectiveConfig{}, invalid("order 只能是 asc 或 desc，实际是 %q", order)
	}

	missing := strings.ToLower(pick(cli.MissingSet, cli.Missing, fc.Missing))
	if missing != export.MissingPlaceholder && missing != export.MissingComment {
		return EffectiveConfig{}, invalid("missing 只能是 placeholder 或 comment，实际是 %q", missing)
	}

	observe := strings.ToLower(pick(cli.ObserveSet, cli.Observe, fc.Browser.Observe))
	if observe != ObserveCDP && observe != ObservePerformance {
		return EffectiveConfig{}, invalid("browser.observe 只能是 cdp 或 performance，实际是 %q", observe)
	}

	remoteURL := strings.TrimSpace(pick(cli.RemoteURLSet, cli.RemoteURL, fc.Browser.RemoteURL))
	if remoteURL != "" {
		u, err := url.Parse(remoteURL)
		if err != nil || u.Host == "" {
			return EffectiveConfig{}, invalid("browser.remote_url 无效：%q", remoteURL)
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return EffectiveConfig{}, invalid("browser.remote_url 必须是 ws/wss/http/https：%q", remoteURL)
		}
	}

	// 时间参数：毫秒，0 已被默认值补齐；负数视为非法。
	t := fc.Timing
	for name, v := range map[string]int{
		"timing.poll_ms":         t.PollMS,
		"timing.timeout_ms":      t.TimeoutMS,
		"timing.click_settle_ms": t.ClickSettleMS,
		"timing.row_settle_ms":   t.RowSettleMS,
	} {
		if v < 0 {
			return EffectiveConfig{}, invalid("%s 不能为负数：%d", name, v)
		}
	}
	timeout := ms(t.TimeoutMS)
	if cli.TimeoutSet {
		if cli.Timeout <= 0 {
			return EffectiveConfig{}, invalid("--timeout 必须大于 0")
		}
		timeout = cli.Timeout
	}
	poll := ms(t.PollMS)
	if poll <= 0 {
		poll = ms(DefaultPollMS)
	}

	concurrency := fc.Concurrency
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	proxyURL := strings.TrimSpace(fc.Proxy.URL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid("proxy.url 无效：%q", proxyURL)
		}
	}

	placeholder := strings.TrimSpace(fc.PlaceholderTitle)
	if placeholder == "" {
		placeholder = DefaultPlaceholderTitle
	}

	program := strings.TrimSpace(fc.Downloader)
	if program == "" {
		program = export.DefaultProgram
	}

	userDataDir := ""
	if strings.TrimSpace(fc.Browser.UserDataDir) != "" {
		userDataDir = absCleanFrom(baseDir, fc.Browser.UserDataDir)
	}

	return EffectiveConfig{
		URL:         strings.TrimSpace(cli.URL),
		Profile:     p,
		Order:       order,
		OutDir:      absCleanFrom(baseDir, pick(cli.OutDirSet, cli.OutDir, fc.OutDir)),
		CacheDir:    absCleanFrom(baseDir, fc.CacheDir),
		Program:     program,
		Missing:     missing,
		Poll:        poll,
		Timeout:     timeout,
		ClickSettle: ms(t.ClickSettleMS),
		RowSettle:   ms(t.RowSettleMS),
		Browser: Browser{
			RemoteURL:   remoteURL,
			ExecPath:    strings.TrimSpace(fc.Browser.ExecPath),
			UserDataDir: userDataDir,
			Headless:    pickBool(cli.HeadlessSet, cli.Headless, fc.Browser.Headless),
			Observe:     observe,
		},
		Probe:            pickBool(cli.ProbeSet, cli.Probe, fc.Probe),
		Report:           pickBool(cli.ReportSet, cli.Report, fc.Report),
		Concurrency:      concurrency,
		ProxyURL:         proxyURL,
		PlaceholderTitle: placeholder,
	}, nil
}

func pick(set bool, cliValue, fileValue string) string {
	if set {
		return strings.TrimSpace(cliValue)
	}
	return strings.TrimSpace(fileValue)
}

func pickBool(set bool, cliValue bool, fileValue *bool) bool {
	if set {
		return cliValue
	}
	return fileValue != nil && *fileValue
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
