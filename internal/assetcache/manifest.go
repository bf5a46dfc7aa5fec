package assetcache

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nailsizes/nailsizes/internal/schema"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Manifest is the versioned list of assets a cache generation holds.
type Manifest struct {
	Cache   string   `yaml:"cache"`
	Version string   `yaml:"version"`
	Assets  []string `yaml:"assets"`
}

// DefaultManifest returns the built-in manifest.
func DefaultManifest() *Manifest {
	m, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("assetcache: built-in manifest.yaml is invalid: %v", err))
	}
	return m
}

// LoadManifest reads a manifest file. An empty path returns the built-in one.
func LoadManifest(file string) (*Manifest, error) {
	if file == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return m, nil
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Cache == "" || m.Version == "" {
		return nil, fmt.Errorf("manifest needs both cache and version")
	}
	if len(m.Assets) == 0 {
		return nil, fmt.Errorf("manifest lists no assets")
	}
	seen := make(map[string]bool, len(m.Assets))
	for _, a := range m.Assets {
		p := NormalizePath(a)
		if seen[p] {
			return nil, fmt.Errorf("manifest lists %q twice", a)
		}
		seen[p] = true
	}
	return &m, nil
}

// Bucket is the cache bucket name for this manifest, e.g. "nail-sizes-v4".
func (m *Manifest) Bucket() string {
	return m.Cache + "-" + m.Version
}

// Paths returns the normalized asset paths in manifest order.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Assets))
	for i, a := range m.Assets {
		out[i] = NormalizePath(a)
	}
	return out
}

// Contains reports whether the manifest lists p.
func (m *Manifest) Contains(p string) bool {
	p = NormalizePath(p)
	for _, a := range m.Assets {
		if NormalizePath(a) == p {
			return true
		}
	}
	return false
}

// MissingStyleImages returns the image paths of styles that the manifest does
// not list. Such styles render without an image when offline.
func (m *Manifest) MissingStyleImages(styles []*schema.Style) []string {
	var missing []string
	for _, s := range styles {
		if p := s.ImagePath(); p != "" && !m.Contains(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// NormalizePath maps manifest entries and request paths onto one key space:
// "./" and "" become "/", "./x" and "x" become "/x". Query strings are dropped.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "." || strings.HasPrefix(p, "./") {
		p = p[1:]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}
