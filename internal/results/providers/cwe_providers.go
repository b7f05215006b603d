// internal/results/providers/cwe_providers.go
package providers

import (
	"fmt"
	"strings"
)

// CWEEntry holds details about a specific CWE.
type CWEEntry struct {
	ID          string
	Name        string
	Description string
}

// URL returns the MITRE definition page of the entry.
func (e CWEEntry) URL() string {
	num := strings.TrimPrefix(strings.ToUpper(e.ID), "CWE-")
	return fmt.Sprintf("https://cwe.mitre.org/data/definitions/%s.html", num)
}

// CWEProvider defines the interface for retrieving CWE information.
type CWEProvider interface {
	GetCWE(id string) (*CWEEntry, error)
}

// InMemoryCWEProvider serves the weaknesses the PHP analyzer reports.
type InMemoryCWEProvider struct {
	data map[string]CWEEntry
}

// NewInMemoryCWEProvider creates a new InMemoryCWEProvider with preloaded data.
func NewInMemoryCWEProvider() *InMemoryCWEProvider {
	data := map[string]CWEEntry{
		"CWE-22": {ID: "CWE-22", Name: "Improper Limitation of a Pathname to a Restricted Directory ('Path Traversal')", Description: "The product uses external input to construct a pathname that is intended to identify a file or directory located underneath a restricted parent directory, but it does not properly neutralize special elements within the pathname."},
		"CWE-78": {ID: "CWE-78", Name: "Improper Neutralization of Special Elements used in an OS Command ('OS Command Injection')", Description: "The product constructs all or part of an OS command using externally-influenced input, but it does not neutralize or incorrectly neutralizes special elements that could modify the intended OS command."},
		"CWE-79": {ID: "CWE-79", Name: "Improper Neutralization of Input During Web Page Generation ('Cross-site Scripting')", Description: "The product does not neutralize or incorrectly neutralizes user-controllable input before it is placed in output that is used as a web page that is served to other users."},
		"CWE-89": {ID: "CWE-89", Name: "Improper Neutralization of Special Elements used in an SQL Command ('SQL Injection')", Description: "The product constructs all or part of an SQL command using externally-influenced input, but it does not neutralize or incorrectly neutralizes special elements that could modify the intended SQL command."},
		"CWE-98": {ID: "CWE-98", Name: "Improper Control of Filename for Include/Require Statement in PHP Program ('PHP Remote File Inclusion')", Description: "The PHP application receives input from an upstream component, but it does not restrict or incorrectly restricts the input before its usage in require, include, or similar functions."},
		"CWE-116": {ID: "CWE-116", Name: "Improper Encoding or Escaping of Output", Description: "The product prepares a structured message for communication with another component, but encoding or escaping of the data is either missing or done incorrectly."},
	}
	return &InMemoryCWEProvider{data: data}
}

// GetCWE retrieves CWE details by ID. Unknown IDs get a generic entry so
// enrichment never fails a report.
func (p *InMemoryCWEProvider) GetCWE(id string) (*CWEEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("empty CWE id")
	}
	entry, exists := p.data[strings.ToUpper(id)]
	if !exists {
		return &CWEEntry{ID: id, Name: fmt.Sprintf("%s (Details Not Found)", id)}, nil
	}
	return &entry, nil
}
