package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"campus-tutor-go/pkg/log"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// extractText 按扩展名分派到对应的文本抽取器。
// 返回值 supported 为 false 表示该文件类型不受支持，调用方应跳过。
func (p *Processor) extractText(ctx context.Context, path string) (text string, supported bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, fmt.Errorf("读取文本文件失败: %w", err)
		}
		return string(data), true, nil

	case ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, fmt.Errorf("读取 Markdown 文件失败: %w", err)
		}
		text, err := markdownToText(data)
		if err != nil {
			return "", true, fmt.Errorf("渲染 Markdown 失败: %w", err)
		}
		return text, true, nil

	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, fmt.Errorf("读取 HTML 文件失败: %w", err)
		}
		text, err := htmlToText(data)
		if err != nil {
			return "", true, fmt.Errorf("解析 HTML 失败: %w", err)
		}
		return text, true, nil

	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return "", true, fmt.Errorf("打开 PDF 文件失败: %w", err)
		}
		defer f.Close()
		text, err := p.tikaClient.ExtractText(ctx, f, filepath.Base(path))
		if err != nil {
			return "", true, fmt.Errorf("使用 Tika 提取 PDF 文本失败: %w", err)
		}
		return text, true, nil

	default:
		log.Infof("[Processor] 跳过不支持的文件类型: %s", path)
		return "", false, nil
	}
}

// markdownToText 先将 Markdown 渲染为 HTML，再走同一套 DOM 文本抽取。
func markdownToText(source []byte) (string, error) {
	var rendered bytes.Buffer
	if err := goldmark.Convert(source, &rendered); err != nil {
		return "", err
	}
	return htmlToText(rendered.Bytes())
}

// htmlToText 遍历 DOM 收集文本节点，忽略 script 和 style。
func htmlToText(source []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String(), nil
}
