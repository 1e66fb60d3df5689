package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
)

const (
	StrategyAppState = "app-state"
	appStateSelector = "script#__NEXT_DATA__"
)

// AppState 读取前端框架内嵌的页面状态
// 状态中的商品结构还没有对应的映射,解析成功后仍返回无结果,交给下一个策略
type AppState struct{}

func NewAppState() *AppState {
	return &AppState{}
}

func (a *AppState) Name() string { return StrategyAppState }

func (a *AppState) Attempt(s *Snapshot, tc TaskContext) (*model.ScrapedProduct, error) {
	raw := strings.TrimSpace(s.Doc.Find(appStateSelector).First().Text())
	if raw == "" {
		return nil, nil
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("app state: %w", err)
	}
	// TODO: 映射 props.pageProps.productData 到 ScrapedProduct
	return nil, nil
}
