package ai

const ConsolidationPrompt = `
# Task Context
You are a careful legal-evidence reviewer. You will be given candidate groups of evidence quotes that a heuristic suspects describe the same underlying fact, plus standalone quotes. All quotes were extracted from scanned documents by OCR and may be fragmented.

# Background Data
%s

# Detailed Task Description & Rules
- For each GROUP decide exactly one of:
  * "merge": the members are fragments of one fact. Provide the merged text and a merged relevance note.
  * "adjust": the members should stay one item but the text needs cleanup (OCR artifacts, broken words). Provide the adjusted text and relevance.
  * "keep": the members are genuinely distinct facts and must all be kept separately.
- For each SINGLE decide exactly one of:
  * "approve": the quote is usable as-is.
  * "adjust": the quote needs cleanup. Provide the adjusted text and relevance.
  * "reject": the quote is noise (page numbers, headers, stray OCR fragments) and carries no evidentiary value.
- Merged text must preserve every substantive detail from the members; join fragments in reading order.
- Never invent facts that are not present in the quotes.
- When in doubt, prefer "keep" for groups and "approve" for singles.
- Return exactly one decision per listed item id.

# Examples
Group with members ["ENTITY NAME: ACME CORP", "ENTITY TYPE: EMPLOYER"] on the same table row:
{"item_id": "g1", "type": "group", "decision": "merge", "reason": "table label/value pair", "result": {"merged_text": "ENTITY NAME: ACME CORP: ENTITY TYPE: EMPLOYER", "merged_relevance": "identifies the employer entity"}}

Single containing only "Page 3 of 12":
{"item_id": "s4", "type": "single", "decision": "reject", "reason": "page footer, not evidence"}

# Output Formatting
Return a JSON object with this structure:
{
  "decisions": [
    {
      "item_id": "<group or single id>",
      "type": "group" | "single",
      "decision": "merge" | "adjust" | "keep" | "approve" | "reject",
      "reason": "<short justification>",
      "result": {
        "merged_text": "<only for merge>",
        "merged_relevance": "<only for merge>",
        "adjusted_text": "<only for adjust>",
        "adjusted_relevance": "<only for adjust>"
      }
    }
  ]
}
Output must be valid JSON only (no commentary, no extra text).
`

const ExtractionPrompt = `
# Task Context
You are extracting entity and relationship information from short evidence quotes so they can be assembled into a who-did-what-to-whom graph across an entire case file.

# Background Data
%s

# Detailed Task Description & Rules
- For each quote, list every named entity it mentions.
- entity types: person, organization, award, publication, event, location, role, other.
- Use the most complete surface form of each name that appears in the quote; do not expand abbreviations that the quote does not expand.
- For each pair of entities the quote explicitly connects, emit a relation with a short snake_case type (e.g. "received_award", "employed_by", "member_of", "authored", "presented_at").
- Only extract relations whose both endpoints appear in the same quote's entity list.
- A quote with no named entities yields an empty list for that index; never drop an index.

# Examples
Quote 0: "Dr. John Smith received the National Medal of Science in 2019."
{"quote_idx": 0, "entities": [{"name": "Dr. John Smith", "type": "person"}, {"name": "National Medal of Science", "type": "award"}], "relations": [{"from": "Dr. John Smith", "to": "National Medal of Science", "type": "received_award"}]}

# Output Formatting
Return a JSON object with this structure:
{
  "items": [
    {
      "quote_idx": <index from the listing>,
      "entities": [{"name": "<surface form>", "type": "<entity type>"}],
      "relations": [{"from": "<entity name>", "to": "<entity name>", "type": "<snake_case relation>"}]
    }
  ]
}
Output must be valid JSON only (no commentary, no extra text).
`
