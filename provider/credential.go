// ABOUTME: Credential type and YAML credential-file loading for generation provider API keys.
// ABOUTME: Credentials are immutable once loaded; rotation order follows ascending priority.
package provider

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Credential is one API key for an external generation provider.
// Values are immutable after loading; only the pool's cursor moves.
type Credential struct {
	Value    string `yaml:"value"`
	Provider string `yaml:"provider"`
	Priority int    `yaml:"priority"`
}

// IsZero reports whether the credential is the empty value, which is what
// steps without a provider dependency receive.
func (c Credential) IsZero() bool {
	return c.Value == "" && c.Provider == ""
}

// credentialFile is the on-disk YAML shape for a credential pool.
type credentialFile struct {
	Credentials []Credential `yaml:"credentials"`
}

// LoadCredentials reads a YAML credential file and returns the credentials
// sorted by ascending priority. The file shape is:
//
//	credentials:
//	  - value: sk-xxxx
//	    provider: openai
//	    priority: 0
func LoadCredentials(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var f credentialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}
	if len(f.Credentials) == 0 {
		return nil, fmt.Errorf("credential file %s contains no credentials", path)
	}
	for i, c := range f.Credentials {
		if c.Value == "" {
			return nil, fmt.Errorf("credential %d in %s has an empty value", i, path)
		}
	}

	sort.SliceStable(f.Credentials, func(i, j int) bool {
		return f.Credentials[i].Priority < f.Credentials[j].Priority
	})
	return f.Credentials, nil
}
