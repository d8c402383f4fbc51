// Package ingest 将新闻文章切分、向量化后写入分块存储和向量集合。
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/utils/json"
)

const maxLineBytes = 16 << 20

// Article 一篇已翻译的新闻文章，每行 JSON 一篇。
type Article struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Country       string `json:"country"`
	Pillar1       int    `json:"pillar_1"`
	Pillar2       int    `json:"pillar_2"`
	Pillar3       int    `json:"pillar_3"`
	Pillar4       int    `json:"pillar_4"`
	Pillar5       int    `json:"pillar_5"`
	Pillar6       int    `json:"pillar_6"`
	Pillar7       int    `json:"pillar_7"`
	Pillar8       int    `json:"pillar_8"`
	ImpactScore   int    `json:"impact_score"`
	PublishedDate string `json:"published_date"`
}

// Pillars 按顺序返回 8 个法治支柱标记。
func (a *Article) Pillars() [tool.PillarCount]int {
	return [tool.PillarCount]int{a.Pillar1, a.Pillar2, a.Pillar3, a.Pillar4, a.Pillar5, a.Pillar6, a.Pillar7, a.Pillar8}
}

// ReadArticles 读取 JSON Lines 文章，空行被忽略，重复 id 只保留第一篇。
func ReadArticles(r io.Reader) (articles []Article, duplicates int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	seen := make(map[string]struct{})
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var a Article
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if a.ID == "" {
			return nil, 0, fmt.Errorf("line %d: article id is required", line)
		}
		if _, ok := seen[a.ID]; ok {
			duplicates++
			continue
		}
		seen[a.ID] = struct{}{}
		articles = append(articles, a)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read articles: %w", err)
	}
	return articles, duplicates, nil
}
