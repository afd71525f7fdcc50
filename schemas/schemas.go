// Package schemas embeds the JSON Schemas that inference responses are checked against.
package schemas

import "embed"

// Files holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Schema file names, one per response shape.
const (
	CleanedRecord = "cleaned_record.schema.json"
	Descriptions  = "descriptions.schema.json"
	Summary       = "summary.schema.json"
	Phrases       = "phrases.schema.json"
	Candidates    = "candidates.schema.json"
	Fills         = "fills.schema.json"
)

// All lists the embedded schema names.
func All() []string {
	return []string{CleanedRecord, Descriptions, Summary, Phrases, Candidates, Fills}
}
