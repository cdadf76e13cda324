package usecase

import "ContractsOrchestrator/internal/schema"

// AssistantInstruction steers the first orchestration turn toward a single tool.
const AssistantInstruction = `You are a government-contracting assistant.
- To look up opportunities, call "searchContracts".
- For the documents of a specific opportunity, call "listContractDocs", or "summarizeDocs" when the user picked documents.
- To parse a pasted solicitation, call "extractSolicitation".
- To split a summary into prime contractor and subcontractor work, call "judgeBundle".
- Otherwise answer briefly.
- Never invent facts.`

func extractionInstruction() string {
	return `You are an extraction engine. Respond with JSON only (no prose, no markdown) matching this schema:
` + schema.Extraction.JSON() + `
Rules:
- Omit any field you cannot determine.
- Dates use YYYY-MM-DD.
- tradePackages lists the subcontractor trades the text implies.
- Never add properties outside the schema.`
}

func summaryInstruction() string {
	return `You are a contract summarization engine. Respond with JSON only, matching the schema below.
Use null or empty arrays for anything the documents do not state; never invent details.

Schema (JSON):
` + schema.Summary.JSON()
}

func judgeInstruction() string {
	return `You are a bid judge. Given the summary JSON, separate:
- prime_contractor_requirements (array of strings)
- subcontractor_packages (array of { trade, scope_items[] })
Add a confidence between 0 and 1 and a short rationale.
Respond with JSON only, matching this schema:
` + schema.Judge.JSON()
}
