package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/model"
)

const (
	profilesDir = "profiles"
	researchDir = "research"
	reportsDir  = "reports"

	dirPerm  = 0o755
	filePerm = 0o644
)

// FileProfileStore persists profiles as indented JSON under <root>/profiles.
type FileProfileStore struct {
	root string
}

// NewFileProfileStore creates a profile store rooted at dir. The namespace
// directory is created lazily on first save.
func NewFileProfileStore(dir string) *FileProfileStore {
	return &FileProfileStore{root: dir}
}

func (s *FileProfileStore) path(id model.Identity) string {
	return filepath.Join(s.root, profilesDir, id.Slug()+".json")
}

func (s *FileProfileStore) Exists(_ context.Context, id model.Identity) (bool, error) {
	return fileExists(s.path(id))
}

func (s *FileProfileStore) Load(_ context.Context, id model.Identity) (*model.ClientProfile, error) {
	data, err := readArtifact(s.path(id))
	if err != nil {
		return nil, err
	}
	profile, err := model.ParseClientProfile(data)
	if err != nil {
		return nil, &CorruptDataError{Identity: id.String(), Artifact: "profile", Err: err}
	}
	return profile, nil
}

func (s *FileProfileStore) Save(_ context.Context, profile *model.ClientProfile) error {
	id, err := model.NormalizeIdentity(profile.Name)
	if err != nil {
		return err
	}
	return writeJSON(s.path(id), profile)
}

// FileResearchStore persists research results as indented JSON under
// <root>/research.
type FileResearchStore struct {
	root string
}

// NewFileResearchStore creates a research store rooted at dir.
func NewFileResearchStore(dir string) *FileResearchStore {
	return &FileResearchStore{root: dir}
}

func (s *FileResearchStore) path(id model.Identity) string {
	return filepath.Join(s.root, researchDir, id.Slug()+".json")
}

func (s *FileResearchStore) Exists(_ context.Context, id model.Identity) (bool, error) {
	return fileExists(s.path(id))
}

func (s *FileResearchStore) Load(_ context.Context, id model.Identity) (*model.ResearchResult, error) {
	data, err := readArtifact(s.path(id))
	if err != nil {
		return nil, err
	}
	result, err := model.ParseResearchResult(data)
	if err != nil {
		return nil, &CorruptDataError{Identity: id.String(), Artifact: "research", Err: err}
	}
	return result, nil
}

func (s *FileResearchStore) Save(_ context.Context, result *model.ResearchResult) error {
	id, err := model.NormalizeIdentity(result.ClientName)
	if err != nil {
		return err
	}
	return writeJSON(s.path(id), result)
}

// FileReportStore persists report markdown under <root>/reports. Filenames
// encode the generation timestamp so run history stays inspectable.
type FileReportStore struct {
	root string
}

// NewFileReportStore creates a report store rooted at dir.
func NewFileReportStore(dir string) *FileReportStore {
	return &FileReportStore{root: dir}
}

func (s *FileReportStore) Save(_ context.Context, doc *model.ReportDocument) (string, error) {
	id, err := model.NormalizeIdentity(doc.ClientName)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, reportsDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", eris.Wrap(err, "store: create reports dir")
	}

	stamp := doc.GeneratedAt.Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.md", id.Slug(), stamp))

	// Two runs inside the same second get a numeric suffix instead of
	// clobbering the earlier report.
	for n := 1; ; n++ {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%s_%d.md", id.Slug(), stamp, n))
	}

	if err := os.WriteFile(path, []byte(doc.Markdown), filePerm); err != nil {
		return "", eris.Wrapf(err, "store: write report %s", path)
	}
	doc.Path = path
	return path, nil
}

func (s *FileReportStore) List(_ context.Context, id model.Identity) ([]string, error) {
	dir := filepath.Join(s.root, reportsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "store: read reports dir")
	}

	prefix := id.Slug() + "_"
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	// Timestamped names sort chronologically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, eris.Wrapf(err, "store: stat %s", path)
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	return data, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return eris.Wrap(err, "store: create namespace dir")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: marshal artifact")
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return eris.Wrapf(err, "store: write %s", path)
	}
	return nil
}
