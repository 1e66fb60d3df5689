package es

import (
	"strings"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// 全文检索的字段,标题权重更高
var productSearchFields = []string{"title^2", "brand_name", "category_name", "description"}

// ProductQuery 构造商品检索条件
// text 为空时匹配全部;storeID 非空时只返回该商店的商品
func ProductQuery(text, storeID string) *types.Query {
	var must types.Query
	if text = strings.TrimSpace(text); text == "" {
		must = types.Query{MatchAll: &types.MatchAllQuery{}}
	} else {
		must = types.Query{MultiMatch: &types.MultiMatchQuery{
			Query:  text,
			Fields: productSearchFields,
		}}
	}
	query := &types.Query{Bool: &types.BoolQuery{Must: []types.Query{must}}}
	if storeID != "" {
		query.Bool.Filter = []types.Query{{
			Term: map[string]types.TermQuery{"store_id": {Value: storeID}},
		}}
	}
	return query
}
