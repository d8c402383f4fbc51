package tool

// 过滤字段名，与向量集合中的标量字段一致。
const (
	FieldCountry     = "country"
	FieldImpactScore = "impact_score"
)

// MetadataFilter 合取过滤条件：字段名到字面值（string、int）、
// Predicate 或 []Predicate（多个条件同时满足）。
type MetadataFilter map[string]any

// BuildFilter 按字段逐一复制请求中出现的可选字段。
// query 文本不参与过滤；空字符串的 country 与空的 impact_score 视为缺省。
func BuildFilter(q Query) MetadataFilter {
	f := MetadataFilter{}

	if q.Country != nil && *q.Country != "" {
		f[FieldCountry] = *q.Country
	}

	for i, p := range q.Pillars {
		if p != nil {
			f[PillarField(i)] = *p
		}
	}

	if s := q.ImpactScore; !s.IsZero() {
		switch {
		case s.Exact != nil:
			f[FieldImpactScore] = *s.Exact
		case len(s.Predicates) == 1:
			f[FieldImpactScore] = s.Predicates[0]
		default:
			f[FieldImpactScore] = append([]Predicate(nil), s.Predicates...)
		}
	}

	return f
}
