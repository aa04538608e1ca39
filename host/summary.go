package host

import (
	"time"

	"github.com/drblury/operatorhost/discovery"
	"github.com/drblury/operatorhost/operator"
	"github.com/drblury/operatorhost/registry"
	"github.com/drblury/operatorhost/router"
)

// OperatorSummary is the listing view of a registered operator.
type OperatorSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Version       string    `json:"version,omitempty"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags,omitempty"`
	Endpoints     []string  `json:"endpoints"`
	EndpointCount int       `json:"endpointCount"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// SearchResult is a summary with its relevance score.
type SearchResult struct {
	OperatorSummary
	Score float64 `json:"score"`
}

// ScanSummary is the JSON view of the last discovery scan.
type ScanSummary struct {
	Root       string   `json:"root"`
	Discovered int      `json:"discovered"`
	Loaded     int      `json:"loaded"`
	Skipped    int      `json:"skipped"`
	Failures   []string `json:"failures,omitempty"`
}

// Stats is the combined service view.
type Stats struct {
	registry.Stats
	router.BuilderStats
	LastScan      ScanSummary `json:"lastScan"`
	SearchIndex   int         `json:"searchIndex"`
	Initialized   bool        `json:"initialized"`
	InitializedAt *time.Time  `json:"initializedAt,omitempty"`
}

func summarize(op *operator.Registered) OperatorSummary {
	info := op.Info()
	category := op.Category()
	base := router.BasePath(category, info.Name)
	paths := op.Descriptor.SortedPaths()

	endpoints := make([]string, 0, len(paths))
	for _, p := range paths {
		endpoints = append(endpoints, base+p)
	}

	return OperatorSummary{
		ID:            op.ID,
		Name:          info.Name,
		Title:         info.Title,
		Description:   info.Description,
		Version:       info.Version,
		Category:      category,
		Tags:          info.Tags,
		Endpoints:     endpoints,
		EndpointCount: len(endpoints),
		RegisteredAt:  op.RegisteredAt,
	}
}

func scanSummary(r discovery.Report) ScanSummary {
	out := ScanSummary{
		Root:       r.Root,
		Discovered: r.Discovered,
		Loaded:     r.Loaded,
		Skipped:    r.Skipped,
	}
	for _, f := range r.Failures {
		msg := f.Path
		if f.Err != nil {
			msg += ": " + f.Err.Error()
		}
		out.Failures = append(out.Failures, msg)
	}
	return out
}
