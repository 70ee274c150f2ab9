package domain

// URLNotFound 是捕获失败时写进命令里的占位 URL。
const URLNotFound = "URL_NOT_FOUND_TIMEOUT"

// 捕获失败原因。
const (
	ReasonTimeout     = "timeout"
	ReasonClickFailed = "click_failed"
	ReasonCanceled    = "canceled"
)

// CapturedEntry 是每个视频的捕获结果；追加进 CommandBuffer 后不再修改。
type CapturedEntry struct {
	Index int
	Title string // 已清洗（snake 形式）
	URL   string // Found=false 时为空
	Found bool
	// Reason 仅在 Found=false 时有值：timeout / click_failed / canceled。
	Reason string
}

// DisplayURL 返回写入命令的 URL；捕获失败时返回占位符。
func (e CapturedEntry) DisplayURL() string {
	if !e.Found || e.URL == "" {
		return URLNotFound
	}
	return e.URL
}

// Missing 构造一条缺失记录。
func Missing(index int, title, reason string) CapturedEntry {
	return CapturedEntry{Index: index, Title: title, Reason: reason}
}

// Captured 构造一条成功记录。
func Captured(index int, title, url string) CapturedEntry {
	return CapturedEntry{Index: index, Title: title, URL: url, Found: true}
}
