package errors

import (
	"fmt"
	"sync"
)

// Diagnostic is one analyzer finding on a single source line.
type Diagnostic struct {
	File    string
	Line    int
	Source  string
	Message string
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
}

// ErrorCollector collects diagnostics in the order they were reported
type ErrorCollector struct {
	diagnostics []Diagnostic
	files       []string
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add adds a diagnostic to the collector
func (ec *ErrorCollector) Add(d Diagnostic) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	seen := false
	for _, f := range ec.files {
		if f == d.File {
			seen = true
			break
		}
	}
	if !seen {
		ec.files = append(ec.files, d.File)
	}
	ec.diagnostics = append(ec.diagnostics, d)
}

// GetErrors returns all collected diagnostics
func (ec *ErrorCollector) GetErrors() []Diagnostic {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]Diagnostic, len(ec.diagnostics))
	copy(result, ec.diagnostics)
	return result
}

// Files returns the files with at least one diagnostic, in first-seen order
func (ec *ErrorCollector) Files() []string {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]string, len(ec.files))
	copy(result, ec.files)
	return result
}

// GetErrorsByFile returns diagnostics for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []Diagnostic {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []Diagnostic
	for _, d := range ec.diagnostics {
		if d.File == file {
			fileErrors = append(fileErrors, d)
		}
	}
	return fileErrors
}

// Count returns the number of collected diagnostics
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.diagnostics)
}

// HasErrors returns true if there are any diagnostics
func (ec *ErrorCollector) HasErrors() bool {
	return ec.Count() > 0
}
