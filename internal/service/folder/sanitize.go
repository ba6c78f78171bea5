package folder

import "strings"

// forbiddenChars 不能出现在目录名中的字符
const forbiddenChars = `<>:"/\|?*`

// Sanitize 将任意文本转换为可用作目录名的片段：非法字符替换为 "_"，再去掉首尾空白
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(forbiddenChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
