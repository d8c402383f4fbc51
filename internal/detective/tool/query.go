// Package tool 实现新闻事件检索工具 news_events_search。
//
// 检索流程：校验查询，构造元数据过滤条件，对查询文本做 Embedding，
// 带过滤条件做向量检索，再从分块存储并发取回每个命中分块的全文，
// 按向量检索顺序格式化为上下文块。
package tool

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kart-io/eurodetective/pkg/utils/json"
)

// PillarCount 法治维度数量。
const PillarCount = 8

// Countries 可用于过滤的欧盟成员国名称。
var Countries = []string{
	"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czechia", "Denmark",
	"Estonia", "Finland", "France", "Germany", "Greece", "Hungary", "Ireland",
	"Italy", "Latvia", "Lithuania", "Luxembourg", "Malta", "Netherlands", "Poland",
	"Portugal", "Romania", "Slovakia", "Slovenia", "Spain", "Sweden",
}

// Op 比较运算符。
type Op string

// 支持的运算符。
const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

var opOrder = []Op{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn}

// ParseOp 解析运算符，"$gte" 与 "gte" 两种写法等价。
func ParseOp(s string) (Op, error) {
	op := Op(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "$"))
	if !slices.Contains(opOrder, op) {
		return "", fmt.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// Predicate 比较条件。Op 为 OpIn 时 Value 为 []int，否则为 int。
type Predicate struct {
	Op    Op
	Value any
}

// String 返回 "gte 4" 形式的描述。
func (p Predicate) String() string {
	return fmt.Sprintf("%s %v", p.Op, p.Value)
}

// ImpactScore 影响分过滤条件：精确值或一组比较条件（合取）。
type ImpactScore struct {
	// Exact 非空时表示精确匹配。
	Exact *int
	// Predicates 比较条件，按 eq、ne、gt、gte、lt、lte、in 排序。
	Predicates []Predicate
}

// ExactImpact 构造精确匹配条件。
func ExactImpact(v int) *ImpactScore {
	return &ImpactScore{Exact: &v}
}

// ImpactWhere 构造比较条件。
func ImpactWhere(op Op, value any) *ImpactScore {
	return &ImpactScore{Predicates: []Predicate{{Op: op, Value: value}}}
}

// IsZero 报告条件是否为空。
func (s *ImpactScore) IsZero() bool {
	return s == nil || (s.Exact == nil && len(s.Predicates) == 0)
}

// UnmarshalJSON 接受整数（如 3）或运算符对象（如 {"$gte": 4}、{"lt": 3}、{"$in": [1, 2]}）。
func (s *ImpactScore) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = ImpactScore{}
		return nil
	}

	if v, ok := parseInt(data); ok {
		*s = ImpactScore{Exact: &v}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("impact_score must be an integer or an operator object")
	}

	preds := make([]Predicate, 0, len(raw))
	for key, val := range raw {
		op, err := ParseOp(key)
		if err != nil {
			return fmt.Errorf("impact_score: %w", err)
		}
		if op == OpIn {
			var list []int
			if err := json.Unmarshal(val, &list); err != nil {
				return fmt.Errorf("impact_score: %s expects a list of integers", key)
			}
			preds = append(preds, Predicate{Op: op, Value: list})
			continue
		}
		v, ok := parseInt(val)
		if !ok {
			return fmt.Errorf("impact_score: %s expects an integer", key)
		}
		preds = append(preds, Predicate{Op: op, Value: v})
	}
	slices.SortFunc(preds, func(a, b Predicate) int {
		return slices.Index(opOrder, a.Op) - slices.Index(opOrder, b.Op)
	})

	*s = ImpactScore{Predicates: preds}
	return nil
}

// MarshalJSON 精确值编码为整数，比较条件编码为 {"$op": value}。
func (s ImpactScore) MarshalJSON() ([]byte, error) {
	if s.Exact != nil {
		return []byte(strconv.Itoa(*s.Exact)), nil
	}
	obj := make(map[string]any, len(s.Predicates))
	for _, p := range s.Predicates {
		obj["$"+string(p.Op)] = p.Value
	}
	return json.Marshal(obj)
}

// parseInt 解析 JSON 整数，允许 4.0 这类整值浮点数。
func parseInt(data []byte) (int, bool) {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false
	}
	if f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Query 检索请求。除 Query 外的字段均为可选，缺省字段不参与过滤。
type Query struct {
	Query       string
	Country     *string
	Pillars     [PillarCount]*int
	ImpactScore *ImpactScore
}

type queryJSON struct {
	Query       string       `json:"query"`
	Country     *string      `json:"country,omitempty"`
	Pillar1     *int         `json:"pillar_1,omitempty"`
	Pillar2     *int         `json:"pillar_2,omitempty"`
	Pillar3     *int         `json:"pillar_3,omitempty"`
	Pillar4     *int         `json:"pillar_4,omitempty"`
	Pillar5     *int         `json:"pillar_5,omitempty"`
	Pillar6     *int         `json:"pillar_6,omitempty"`
	Pillar7     *int         `json:"pillar_7,omitempty"`
	Pillar8     *int         `json:"pillar_8,omitempty"`
	ImpactScore *ImpactScore `json:"impact_score,omitempty"`
}

// UnmarshalJSON 按工具参数格式解码。
func (q *Query) UnmarshalJSON(data []byte) error {
	var aux queryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = Query{
		Query:       aux.Query,
		Country:     aux.Country,
		Pillars:     [PillarCount]*int{aux.Pillar1, aux.Pillar2, aux.Pillar3, aux.Pillar4, aux.Pillar5, aux.Pillar6, aux.Pillar7, aux.Pillar8},
		ImpactScore: aux.ImpactScore,
	}
	return nil
}

// MarshalJSON 编码为工具参数格式。
func (q Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(queryJSON{
		Query:       q.Query,
		Country:     q.Country,
		Pillar1:     q.Pillars[0],
		Pillar2:     q.Pillars[1],
		Pillar3:     q.Pillars[2],
		Pillar4:     q.Pillars[3],
		Pillar5:     q.Pillars[4],
		Pillar6:     q.Pillars[5],
		Pillar7:     q.Pillars[6],
		Pillar8:     q.Pillars[7],
		ImpactScore: q.ImpactScore,
	})
}

// ParseQuery 解码工具参数 JSON。
func ParseQuery(args string) (Query, error) {
	var q Query
	if err := json.Unmarshal([]byte(args), &q); err != nil {
		return Query{}, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return q, nil
}

// Validate 校验检索请求。
func (q Query) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	if q.Country != nil && *q.Country != "" && !slices.Contains(Countries, *q.Country) {
		return fmt.Errorf("unknown country %q, expected one of: %s", *q.Country, strings.Join(Countries, ", "))
	}
	for i, p := range q.Pillars {
		if p != nil && *p != 0 && *p != 1 {
			return fmt.Errorf("pillar_%d must be 0 or 1, got %d", i+1, *p)
		}
	}
	if s := q.ImpactScore; s != nil && s.Exact != nil && (*s.Exact < 1 || *s.Exact > 5) {
		return fmt.Errorf("impact_score must be between 1 and 5, got %d", *s.Exact)
	}
	return nil
}

// PillarField 返回第 i 个（从 0 开始）维度的字段名 pillar_{i+1}。
func PillarField(i int) string {
	return "pillar_" + strconv.Itoa(i+1)
}
