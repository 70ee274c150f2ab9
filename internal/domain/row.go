package domain

// VideoRow 描述页面上列出的一条视频（来自渲染后的 DOM 快照，只读）。
//
// 不变量：
// - Ordinal 是该行在全部行元素中的 0-based 位置（含页面重复渲染的部分）
// - Index = Ordinal + 1，是输出命令里稳定的 1-based 序号
type VideoRow struct {
	Ordinal  int
	Index    int
	ID       string
	RawTitle string
	// HasTitle=false 表示该行缺少标题子元素；这类行整行跳过，不参与点击。
	HasTitle bool
}
