package internal

import (
	"crypto/md5"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ragagent/types"
)

const ManifestFile = "corpus.yaml"

// SourceEntry describes one corpus file in the manifest.
type SourceEntry struct {
	File        string `yaml:"file"`
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
}

// Manifest maps a source name to its entry.
type Manifest struct {
	Sources map[string]SourceEntry `yaml:"sources"`
}

// LoadManifest reads corpus.yaml from dir. A missing manifest is an empty one.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{Sources: map[string]SourceEntry{}}, nil
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if m.Sources == nil {
		m.Sources = map[string]SourceEntry{}
	}
	return &m, nil
}

// LoadCorpus reads every .md and .txt file of dir as a Document, in file-name order.
// Manifest entries supply title and url; other files are named after the file.
func LoadCorpus(dir string) ([]types.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus %s is not a directory", dir)
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	byFile := make(map[string]string, len(manifest.Sources))
	for name, entry := range manifest.Sources {
		file := entry.File
		if file == "" {
			file = name + ".txt"
		}
		byFile[file] = name
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []types.Document
	for _, e := range entries {
		if e.IsDir() || !isCorpusFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		source := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		title := generateTitle(e.Name())
		url := "file://" + path
		if name, ok := byFile[e.Name()]; ok {
			entry := manifest.Sources[name]
			source = name
			if entry.Title != "" {
				title = entry.Title
			} else if entry.Description != "" {
				title = entry.Description
			}
			if entry.URL != "" {
				url = entry.URL
			}
		}

		docs = append(docs, types.Document{
			ID:        generateDocumentID(path),
			Title:     title,
			URL:       url,
			Source:    source,
			Path:      path,
			Content:   string(content),
			CreatedAt: time.Now().UTC(),
		})
		log.Printf("[LOADER] Loaded %s: %d chars", source, len(content))
	}
	return docs, nil
}

func isCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func generateTitle(fileName string) string {
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

func generateDocumentID(path string) string {
	hash := md5.Sum([]byte(path))
	return fmt.Sprintf("%x", hash)
}
