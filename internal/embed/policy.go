package embed

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Policy holds the URL lists that steer classification.
type Policy struct {
	// CheckEmbedURL lists final URLs whose bodies are searched for an
	// alternate embed URL when framing is refused.
	CheckEmbedURL []*regexp.Regexp
	// DisallowEmbed lists links that are never embeddable.
	DisallowEmbed []*regexp.Regexp
}

// DefaultPolicy returns the built-in lists.
func DefaultPolicy() Policy {
	return Policy{
		CheckEmbedURL: []*regexp.Regexp{
			regexp.MustCompile(`^https?://(drive|docs)\.google\.com/`),
		},
		DisallowEmbed: []*regexp.Regexp{
			regexp.MustCompile(`^https?://(www\.)?portfolium\.com/entry`),
		},
	}
}

type policyFile struct {
	CheckEmbedURL []string `yaml:"check_embed_url"`
	DisallowEmbed []string `yaml:"disallow_embed"`
}

// LoadPolicy reads a YAML policy file. A list missing from the file keeps
// its default.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read embed policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (Policy, error) {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return Policy{}, fmt.Errorf("parse embed policy: %w", err)
	}

	policy := DefaultPolicy()
	if pf.CheckEmbedURL != nil {
		regexes, err := compileAll(pf.CheckEmbedURL)
		if err != nil {
			return Policy{}, fmt.Errorf("check_embed_url: %w", err)
		}
		policy.CheckEmbedURL = regexes
	}
	if pf.DisallowEmbed != nil {
		regexes, err := compileAll(pf.DisallowEmbed)
		if err != nil {
			return Policy{}, fmt.Errorf("disallow_embed: %w", err)
		}
		policy.DisallowEmbed = regexes
	}
	return policy, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(regexes []*regexp.Regexp, s string) bool {
	for _, re := range regexes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
