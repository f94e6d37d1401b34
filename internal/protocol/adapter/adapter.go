package adapter

// Adapter 设备链路适配器：字节流入口
// 要求：
// - Sniff 用于首包初判（起始标记）
// - ProcessBytes 处理来自链路的原始字节流（内部负责半包/粘包）
type Adapter interface {
	Sniff(prefix []byte) bool
	ProcessBytes(p []byte) error
}
