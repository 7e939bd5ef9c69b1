package parser

import (
	"strings"

	"jobook/pkg/utils"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote, pre, section, article"

// HTMLToText 把富文本编辑器产出的 HTML 转成纯文本，块级元素之间换行。
// 不是 HTML 的输入原样规整空白后返回
func HTMLToText(raw string) string {
	if !strings.Contains(raw, "<") {
		return utils.NormalizeWhitespace(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return utils.NormalizeWhitespace(raw)
	}
	doc.Find("script, style, noscript, iframe, template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("- ")
	doc.Find(blockSelector).AppendHtml("\n")
	doc.Find("td, th").AppendHtml(" ")

	return utils.NormalizeWhitespace(doc.Text())
}

// SanitizeHTML 去掉脚本类元素和事件属性，保留排版标签
func SanitizeHTML(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find("script, style, iframe, object, embed, form, input, link, meta").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		kept := node.Attr[:0]
		for _, a := range node.Attr {
			key := strings.ToLower(a.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				continue
			}
			kept = append(kept, a)
		}
		node.Attr = kept
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
