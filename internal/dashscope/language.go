package dashscope

// Language tags produced by DetectLanguage
const (
	LangChinese = "zh-cn"
	LangEnglish = "en"
)

// DetectLanguage returns LangChinese if text contains any rune from the CJK
// Unified Ideographs block, LangEnglish otherwise. It is local and total.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= '\u4e00' && r <= '\u9fff' {
			return LangChinese
		}
	}
	return LangEnglish
}
