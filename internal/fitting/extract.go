package fitting

import (
	"github.com/tidwall/gjson"
)

// ExtractRule 一条取图规则：命中返回非空 URL
type ExtractRule struct {
	Name  string
	Match func(node gjson.Result) string
}

// DefaultExtractRules 按顺序尝试，不同版本的后端响应把图片放在不同路径下
var DefaultExtractRules = []ExtractRule{
	{Name: "images", Match: matchImages},
	{Name: "image", Match: matchImage},
	{Name: "data", Match: matchData},
	{Name: "url", Match: matchURL},
}

// ExtractURL 用默认规则从原始 JSON 响应中取出输出图片 URL
func ExtractURL(body []byte) (string, bool) {
	return ExtractURLWith(DefaultExtractRules, body)
}

// ExtractURLWith 依次应用 rules，返回第一个非空结果
func ExtractURLWith(rules []ExtractRule, body []byte) (string, bool) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return "", false
	}
	root := gjson.ParseBytes(body)
	for _, rule := range rules {
		if url := rule.Match(root); url != "" {
			return url, true
		}
	}
	return "", false
}

// matchImages images[0]，元素可以是字符串或带 url 的对象
func matchImages(node gjson.Result) string {
	images := node.Get("images")
	if !images.IsArray() {
		return ""
	}
	first := images.Get("0")
	if first.Type == gjson.String {
		return first.String()
	}
	return stringField(first, "url")
}

// matchImage image.url
func matchImage(node gjson.Result) string {
	return stringField(node.Get("image"), "url")
}

// matchData data 容器：对象则递归套用 images / image / data；
// 数组（OpenAI 风格的 data 列表）取首个元素的 url
func matchData(node gjson.Result) string {
	data := node.Get("data")
	switch {
	case data.IsObject():
		if url := matchImages(data); url != "" {
			return url
		}
		if url := matchImage(data); url != "" {
			return url
		}
		return matchData(data)
	case data.IsArray():
		return stringField(data.Get("0"), "url")
	}
	return ""
}

// matchURL 顶层 url
func matchURL(node gjson.Result) string {
	return stringField(node, "url")
}

func stringField(node gjson.Result, key string) string {
	if !node.IsObject() {
		return ""
	}
	v := node.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}
