//go:build ignore

// Generates a synthetic chunk corpus for exercising devmind locally.
// Usage: go run scripts/generate-test-corpus.go -chunks 500 -output testdata/corpus.jsonl
//
// Output is one JSON chunk per line, in the format `devmind search --corpus`
// consumes. The generator is seeded so repeated runs produce the same corpus.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numChunks = flag.Int("chunks", 500, "Number of chunks to generate")
	output    = flag.String("output", "testdata/corpus.jsonl", "Output JSONL file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	FilePath    string `json:"file_path"`
	Language    string `json:"language"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	SectionType string `json:"section_type"`
	IndexName   string `json:"index_name"`
}

var subjects = []string{
	"User", "Session", "Payment", "Order", "Invoice", "Account",
	"Token", "Webhook", "Report", "Notification", "Schedule", "Upload",
}

var verbs = []string{
	"Create", "Update", "Delete", "Fetch", "Validate", "Process",
	"Archive", "Sync", "Export", "Import", "Cancel", "Retry",
}

const goFuncTemplate = `// %[1]s%[2]s %[3]ss the %[4]s record.
func %[1]s%[2]s(ctx context.Context, id string) (*%[2]s, error) {
	rec, err := store.Get%[2]s(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%[4]s lookup failed: %%w", err)
	}
	if err := rec.%[1]s(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}`

const goStructTemplate = `// %[1]sService coordinates %[2]s operations.
type %[1]sService struct {
	store  Store
	logger *slog.Logger
	queue  chan %[1]sJob
}`

const pyFuncTemplate = `def %s_%s(session, record_id):
    """%s the %s record and return the updated row."""
    record = session.get(%s, record_id)
    if record is None:
        raise LookupError(f"%s {record_id} not found")
    record.%s()
    session.commit()
    return record`

const docTemplate = `## %s %s

To %s a %s, call the API endpoint with the record identifier. The
operation is idempotent and safe to retry. Failures are reported with a
structured error code and never leave the record half-updated.`

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	enc := json.NewEncoder(w)
	for i := 0; i < *numChunks; i++ {
		subject := subjects[rng.Intn(len(subjects))]
		verb := verbs[rng.Intn(len(verbs))]
		lower := toLower(subject)
		start := 1 + rng.Intn(400)

		var c chunk
		switch i % 4 {
		case 0:
			c = chunk{
				Content:     fmt.Sprintf(goFuncTemplate, verb, subject, toLower(verb), lower),
				FilePath:    fmt.Sprintf("internal/%s/%s.go", lower, toLower(verb)),
				Language:    "go",
				SectionType: "function",
				IndexName:   "code",
			}
		case 1:
			c = chunk{
				Content:     fmt.Sprintf(goStructTemplate, subject, lower),
				FilePath:    fmt.Sprintf("internal/%s/service.go", lower),
				Language:    "go",
				SectionType: "class",
				IndexName:   "code",
			}
		case 2:
			c = chunk{
				Content: fmt.Sprintf(pyFuncTemplate,
					toLower(verb), lower, verb, lower, subject, subject, toLower(verb)),
				FilePath:    fmt.Sprintf("services/%s.py", lower),
				Language:    "python",
				SectionType: "function",
				IndexName:   "code",
			}
		default:
			c = chunk{
				Content:     fmt.Sprintf(docTemplate, verb, subject, toLower(verb), lower),
				FilePath:    fmt.Sprintf("docs/%s.md", lower),
				Language:    "markdown",
				SectionType: "paragraph",
				IndexName:   "docs",
			}
		}

		c.ID = fmt.Sprintf("chunk-%04d", i)
		c.StartLine = start
		c.EndLine = start + 3 + rng.Intn(30)

		if err := enc.Encode(c); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Wrote %d chunks to %s\n", *numChunks, *output)
}

func toLower(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}
