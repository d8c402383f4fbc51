package tool

// RetrieverDescription 检索工具的说明，作为工具定义的 description 发送给模型。
const RetrieverDescription = `
Use this tool when users ask about:
- Summaries of events related to a rule of law topic or pillar within the European Union
- News about specific subjects related to the rule of law within the European Union
- What happened regarding a topic related to the rule of law within the European Union
- Events related to the rule of law in a specific member state of the European Union
- Events with specific impact levels
- Events related to specific dimensions of the rule of law

Available metadata filters:
- country: Filter by specific country name. Available options: "Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czechia", "Denmark", "Estonia", "Finland", "France", "Germany", "Greece", "Hungary", "Ireland", "Italy", "Latvia", "Lithuania", "Luxembourg", "Malta", "Netherlands", "Poland", "Portugal", "Romania", "Slovakia", "Slovenia", "Spain", "Sweden"
- impact_score: Filter by numerical impact score. Values can range from 1 to 5, where 1 and 2 means that the news article has a strong or low negative impact on the rule of law and 5 and 4 means that the news article has a strong or mild positive impact on the thematic pillar. Following the same reasoning, a value of 3 means that the events have a neutral impact on the thematic pillar. Use comparison operators that are compatible with pinecone vector databases: $eq, $ne, $gt, $gte, $lt, $lte, $in
- pillar_1: Binary filter (1 or 0) for "Constraints on Government Powers" related events
- pillar_2: Binary filter (1 or 0) for "Absence of Corruption" related events
- pillar_3: Binary filter (1 or 0) for "Open Government" related events
- pillar_4: Binary filter (1 or 0) for "Fundamental Freedoms" related events
- pillar_5: Binary filter (1 or 0) for "Order and Security" related events
- pillar_6: Binary filter (1 or 0) for "Regulatory Enforcement" related events
- pillar_7: Binary filter (1 or 0) for "Civil Justice" related events
- pillar_8: Binary filter (1 or 0) for "Criminal Justice" related events

IMPACT SCORES:
- Negative impact: {"$lt": 3} (values 1-2)
- Neutral impact: {"$eq": 3}
- Positive impact: {"$gt": 3} (values 4-5)

Input should be a JSON string with 'query' (required) and any combination of optional filters:
{"query": "corruption", "country": "France", "pillar_2": 1}
{"query": "judicial independence", "impact_score": {"$gte": 4}, "pillar_1": 1, "pillar_7": 1, "pillar_8": 1}
{"query": "elections", "country": "Germany", "pillar_1": 1}
{"query": "freedom of speech", "pillar_4": 1}
{"query": "discrimination or equality", "country": "Spain", "pillar_4": 1}
{"query": "judicial reform", "country": "Spain", "pillar_7": 1, "pillar_8": 1}
{"query": "crime, order, safety, violence", "pillar_5": 1}
{"query": "environmental regulation", "country": "Sweden", "pillar_6": 1}
{"query": "labor regulation", "country": "Finland", "pillar_6": 1}
{"query": "busines or commercial laws", "pillar_6": 1}
{"query": "media freedom or freedom of press", "pillar_4": 1}
`
