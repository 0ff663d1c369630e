package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Render (R001-R099)
	"R001": {
		Category:   CategoryRender,
		Message:    "Invalid element tag",
		Suggestion: "Pass a non-empty tag name; the element was rendered as a div.",
	},
	"R002": {
		Category: CategoryRender,
		Message:  "Materialization failed",
	},
	"R003": {
		Category:   CategoryRender,
		Message:    "Component render failed",
		Suggestion: "Renderers must not panic; return an error node instead.",
	},
	"R004": {
		Category: CategoryRender,
		Message:  "Missing render target",
	},
	"R005": {
		Category: CategoryRender,
		Message:  "Component resolution failed",
	},
	"R006": {
		Category: CategoryRender,
		Message:  "Render cancelled",
	},

	// State (S001-S099)
	"S001": {
		Category:   CategoryState,
		Message:    "Invalid state update",
		Suggestion: "State updates must be non-nil records.",
	},
	"S002": {
		Category: CategoryState,
		Message:  "State persistence failed",
	},

	// Loader (L001-L099)
	"L001": {
		Category:   CategoryLoader,
		Message:    "Component not registered",
		Suggestion: "Call Register(name, locator) before resolving the component.",
	},
	"L002": {
		Category: CategoryLoader,
		Message:  "Component load failed",
	},
	"L003": {
		Category: CategoryLoader,
		Message:  "Component has no renderer",
	},

	// Host (H001-H099)
	"H001": {
		Category: CategoryHost,
		Message:  "External mutation detected",
	},
	"H002": {
		Category: CategoryHost,
		Message:  "Event handler panicked",
	},

	// Config (C001-C099)
	"C001": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create retain.json or retain.yaml in the project directory.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// Protocol (P001-P099)
	"P001": {
		Category: CategoryProtocol,
		Message:  "Malformed payload",
	},
}

// Codes returns all registered error codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for a code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
