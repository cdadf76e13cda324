package schema

import "github.com/google/jsonschema-go/jsonschema"

// Extraction is the structured solicitation extracted from raw text.
var Extraction = MustCompile("extraction", Object(map[string]*jsonschema.Schema{
	"solicitationNumber": String(),
	"title":              String(),
	"agency":             Nullable(String()),
	"naics":              Nullable(String()),
	"psc":                Nullable(String()),
	"setAside":           Nullable(String()),
	"dueDates": Object(map[string]*jsonschema.Schema{
		"questions": Nullable(String()),
		"offers":    Nullable(String()),
	}),
	"placeOfPerformance": Nullable(Object(map[string]*jsonschema.Schema{
		"city":  Nullable(String()),
		"state": Nullable(String()),
	})),
	"tradePackages": Nullable(ArrayOf(Object(map[string]*jsonschema.Schema{
		"trade":        String(),
		"scopeSummary": Nullable(String()),
	}, "trade"))),
	"attachments": Nullable(ArrayOf(Object(map[string]*jsonschema.Schema{
		"filename": String(),
	}, "filename"))),
	"citations": Nullable(ArrayOf(Object(map[string]*jsonschema.Schema{
		"field": String(),
		"ref":   String(),
	}, "field", "ref"))),
}, "solicitationNumber", "title"))

// Summary is the multi-document summary of a notice.
var Summary = MustCompile("summary", Object(map[string]*jsonschema.Schema{
	"overview": String(),
	"key_dates": Object(map[string]*jsonschema.Schema{
		"questions_due": Nullable(String()),
		"bids_due":      Nullable(String()),
	}),
	"scope_summary":    String(),
	"risk_notes":       ArrayOf(String()),
	"referenced_files": ArrayOf(String()),
}, "overview", "scope_summary"))

// Judge is the prime vs subcontractor classification of a summary.
var Judge = MustCompile("judge", Object(map[string]*jsonschema.Schema{
	"prime_contractor_requirements": ArrayOf(String()),
	"subcontractor_packages": ArrayOf(Object(map[string]*jsonschema.Schema{
		"trade":       String(),
		"scope_items": ArrayOf(String()),
	}, "trade")),
	"confidence": Number(),
	"rationale":  String(),
}, "prime_contractor_requirements", "subcontractor_packages", "confidence"))

// SearchArgs is the argument shape of the search tool.
var SearchArgs = MustCompile("searchContracts.args", Object(map[string]*jsonschema.Schema{
	"query": NonEmptyString(),
	"state": Nullable(String()),
	"naics": Nullable(String()),
}, "query"))
