package repo

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
)

// RemoteConfig is one [remote "name"] section.
type RemoteConfig struct {
	Name  string
	URL   string
	Fetch []string
}

// BranchConfig is one [branch "name"] section linking a local branch to
// its upstream.
type BranchConfig struct {
	Remote string
	Merge  string
}

// Config is the parsed repository config file. Only the sections this
// tool writes are modeled; unknown sections are dropped on rewrite.
type Config struct {
	Remotes  map[string]*RemoteConfig
	Branches map[string]*BranchConfig
}

// NewConfig returns an empty config.
func NewConfig() *Config {
	return &Config{
		Remotes:  map[string]*RemoteConfig{},
		Branches: map[string]*BranchConfig{},
	}
}

// Remote looks up a configured remote.
func (c *Config) Remote(name string) (*RemoteConfig, error) {
	rc, ok := c.Remotes[name]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "remote %q is not configured", name)
	}
	return rc, nil
}

// ParseConfig reads the INI-style config format: bracketed sections
// with an optional quoted subsection, then indented key = value lines.
func ParseConfig(data []byte) (*Config, error) {
	cfg := NewConfig()
	var section, subsection string
	for n, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return nil, errs.New(errs.KindCorrupt, "config line %d: unterminated section", n+1)
			}
			head := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			name, sub, hasSub := strings.Cut(head, " ")
			section = strings.ToLower(strings.TrimSpace(name))
			subsection = ""
			if hasSub {
				sub = strings.TrimSpace(sub)
				if len(sub) < 2 || sub[0] != '"' || sub[len(sub)-1] != '"' {
					return nil, errs.New(errs.KindCorrupt, "config line %d: malformed subsection", n+1)
				}
				subsection = sub[1 : len(sub)-1]
			}
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errs.New(errs.KindCorrupt, "config line %d: expected key = value", n+1)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch section {
		case "remote":
			if subsection == "" {
				continue
			}
			rc := cfg.Remotes[subsection]
			if rc == nil {
				rc = &RemoteConfig{Name: subsection}
				cfg.Remotes[subsection] = rc
			}
			switch key {
			case "url":
				rc.URL = val
			case "fetch":
				rc.Fetch = append(rc.Fetch, val)
			}
		case "branch":
			if subsection == "" {
				continue
			}
			bc := cfg.Branches[subsection]
			if bc == nil {
				bc = &BranchConfig{}
				cfg.Branches[subsection] = bc
			}
			switch key {
			case "remote":
				bc.Remote = val
			case "merge":
				bc.Merge = val
			}
		}
	}
	return cfg, nil
}

// Encode renders the config in the same INI format, sections sorted for
// stable rewrites.
func (c *Config) Encode() []byte {
	var buf bytes.Buffer
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rc := c.Remotes[name]
		fmt.Fprintf(&buf, "[remote %q]\n", name)
		if rc.URL != "" {
			fmt.Fprintf(&buf, "\turl = %s\n", rc.URL)
		}
		for _, spec := range rc.Fetch {
			fmt.Fprintf(&buf, "\tfetch = %s\n", spec)
		}
	}
	names = names[:0]
	for name := range c.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		bc := c.Branches[name]
		fmt.Fprintf(&buf, "[branch %q]\n", name)
		if bc.Remote != "" {
			fmt.Fprintf(&buf, "\tremote = %s\n", bc.Remote)
		}
		if bc.Merge != "" {
			fmt.Fprintf(&buf, "\tmerge = %s\n", bc.Merge)
		}
	}
	return buf.Bytes()
}

// LoadConfig reads the repository config. A missing file is an empty
// config, not an error.
func (r *Repo) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(r.path("config"))
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, errs.Wrap(errs.KindUnknown, err, "reading config")
	}
	return ParseConfig(data)
}

// SaveConfig rewrites the repository config atomically.
func (r *Repo) SaveConfig(cfg *Config) error {
	return writeFileAtomic(r.path("config"), cfg.Encode())
}

// AddRemote registers a remote with the conventional fetch refspec.
func (r *Repo) AddRemote(name, url string) error {
	cfg, err := r.LoadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Remotes[name]; ok {
		return errs.New(errs.KindConflict, "remote %q already exists", name)
	}
	cfg.Remotes[name] = &RemoteConfig{
		Name:  name,
		URL:   url,
		Fetch: []string{fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name)},
	}
	return r.SaveConfig(cfg)
}

// RemoveRemote drops a remote from the config. Tracking refs are left
// in place; they remain valid history pointers.
func (r *Repo) RemoveRemote(name string) error {
	cfg, err := r.LoadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Remotes[name]; !ok {
		return errs.New(errs.KindNotFound, "remote %q is not configured", name)
	}
	delete(cfg.Remotes, name)
	return r.SaveConfig(cfg)
}
