// Copyright 2026 by HZXY DevOps Team
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/go-homedir"
	"github.com/moby/sys/atomicwriter"
	"golang.org/x/exp/slices"

	log "github.com/sirupsen/logrus"
)

// DefaultFilename is the name of the ledger file inside the user's home
// directory.
const DefaultFilename = ".hzxy-builds.json"

// DefaultVersion is recommended for apps never published before.
const DefaultVersion = "v1.0.0"

// Outcomes of recorded pipeline runs.
const (
	Succeeded = "succeeded"
	Failed    = "failed"
	Cancelled = "cancelled"
)

// Record of a single publishing attempt.
type Record struct {
	AppName     string    `json:"appName"`
	Version     string    `json:"version"`
	Image       string    `json:"image,omitempty"`
	Archive     string    `json:"archive,omitempty"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Ledger of publishing attempts, oldest first.
type Ledger struct {
	Records []Record `json:"records"`
}

// DefaultPath returns the path of the user-scoped ledger file.
func DefaultPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return DefaultFilename
	}
	return filepath.Join(home, DefaultFilename)
}

// Load the ledger from the specified file. A missing file results in an
// empty ledger.
func Load(path string) (*Ledger, error) {
	l := &Ledger{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("cannot read build history, reason: %w", err)
	}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("malformed build history, reason: %w", err)
	}
	return l, nil
}

// Save atomically replaces the ledger file.
func (l *Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot JSONize build history, reason: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create build history directory, reason: %w", err)
	}
	if err := atomicwriter.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("cannot write build history, reason: %w", err)
	}
	return nil
}

// Add a record to the ledger.
func (l *Ledger) Add(r Record) {
	if r.PublishedAt.IsZero() {
		r.PublishedAt = time.Now()
	}
	l.Records = append(l.Records, r)
}

// Append loads the ledger at the specified path, adds the record, and saves
// the ledger again.
func Append(path string, r Record) error {
	l, err := Load(path)
	if err != nil {
		log.Warn(fmt.Sprintf("⚠️  starting new build history, %s", err))
		l = &Ledger{}
	}
	l.Add(r)
	return l.Save(path)
}

// ForApp returns the records of the specified app, newest first.
func (l *Ledger) ForApp(appName string) []Record {
	var records []Record
	for _, r := range l.Records {
		if r.AppName == appName {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})
	return records
}

// Apps returns the sorted names of all apps in the ledger.
func (l *Ledger) Apps() []string {
	apps := []string{}
	for _, r := range l.Records {
		if !slices.Contains(apps, r.AppName) {
			apps = append(apps, r.AppName)
		}
	}
	slices.Sort(apps)
	return apps
}

// Published returns the successfully published versions of the specified
// app that are semantic versions, highest first.
func (l *Ledger) Published(appName string) []*semver.Version {
	var versions []*semver.Version
	for _, r := range l.Records {
		if r.AppName != appName || r.State != Succeeded {
			continue
		}
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			log.Debug(fmt.Sprintf("ignoring non-semver version %q of %s", r.Version, appName))
			continue
		}
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(semver.Collection(versions)))
	return versions
}

// Recommend returns the next version to publish for the specified app: the
// highest successfully published version with its patch level bumped, in the
// same notation. Apps without any published semantic version start at
// DefaultVersion.
func (l *Ledger) Recommend(appName string) string {
	versions := l.Published(appName)
	if len(versions) == 0 {
		return DefaultVersion
	}
	next := versions[0].IncPatch()
	return next.Original()
}
