package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
)

const (
	charactersFile = "characters.json"
	itemsFile      = "items.json"
	locationsFile  = "locations.json"
	structureFile  = "structure.json"
	volumesFile    = "volumes.json"
	settingsFile   = "settings.json"
	chaptersDir    = "chapters"

	// DefaultVolumeID is assigned to manifest entries that predate volumes
	DefaultVolumeID = "vol_default"
)

// Store persists the entity collections and chapter texts of one book as flat
// JSON files under a book directory. Each collection is written wholesale and
// atomically; records with missing optional fields are defaulted on load.
type Store struct {
	baseDir string
	log     *slog.Logger

	// file path -> *sync.RWMutex, guards concurrent readers per file
	fileLocks sync.Map
}

// NewStore opens (and if necessary seeds) the book directory
func NewStore(baseDir string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		baseDir: baseDir,
		log:     logger,
	}

	if err := s.initFS(); err != nil {
		return nil, helper.NewError("initialize book directory", err)
	}

	return s, nil
}

// BaseDir returns the book directory
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) initFS() error {
	if err := os.MkdirAll(filepath.Join(s.baseDir, chaptersDir), 0755); err != nil {
		return err
	}

	seeds := []struct {
		file string
		data interface{}
	}{
		{charactersFile, []model.Character{}},
		{itemsFile, []model.Item{}},
		{locationsFile, []model.Location{}},
		{settingsFile, model.Settings{}},
		{volumesFile, []model.Volume{{ID: DefaultVolumeID, Title: "Main Volume", Order: 1}}},
		{structureFile, []model.Chapter{{
			ID:       1,
			Title:    "Chapter 1",
			VolumeID: DefaultVolumeID,
			Outline:  "Opening.",
			TimeInfo: model.TimeInfo{Label: "story begins", Duration: "0", Events: []string{}},
		}}},
	}

	for _, seed := range seeds {
		path := filepath.Join(s.baseDir, seed.file)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := s.writeJSON(seed.file, seed.data); err != nil {
				return err
			}
		}
	}

	s.log.Debug("Opened book directory", slog.String("dir", s.baseDir))

	return nil
}

func (s *Store) fileLock(path string) *sync.RWMutex {
	value, _ := s.fileLocks.LoadOrStore(path, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// writeJSON writes a collection atomically: marshal, write to a temp file,
// rename over the target. A failed write never leaves a half-written file.
func (s *Store) writeJSON(filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return helper.NewError("marshal "+filename, err)
	}

	path := filepath.Join(s.baseDir, filename)
	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return helper.NewError("write "+filename, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return helper.NewError("rename "+filename, err)
	}

	return nil
}

func (s *Store) readJSON(filename string, out interface{}) error {
	path := filepath.Join(s.baseDir, filename)
	lock := s.fileLock(path)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return helper.NewError("read "+filename, err)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return helper.NewError("unmarshal "+filename, err)
	}

	return nil
}

// LoadCharacters loads the character collection, defaulting absent relations
func (s *Store) LoadCharacters() ([]*model.Character, error) {
	var characters []*model.Character
	if err := s.readJSON(charactersFile, &characters); err != nil {
		return nil, err
	}

	for _, character := range characters {
		if character.Relations == nil {
			character.Relations = []model.Relation{}
		}
	}

	return characters, nil
}

// SaveCharacters rewrites the whole character collection
func (s *Store) SaveCharacters(characters []*model.Character) error {
	if characters == nil {
		characters = []*model.Character{}
	}
	return s.writeJSON(charactersFile, characters)
}

// LoadItems loads the item collection
func (s *Store) LoadItems() ([]*model.Item, error) {
	var items []*model.Item
	if err := s.readJSON(itemsFile, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItems rewrites the whole item collection
func (s *Store) SaveItems(items []*model.Item) error {
	if items == nil {
		items = []*model.Item{}
	}
	return s.writeJSON(itemsFile, items)
}

// LoadLocations loads the location collection, defaulting absent neighbors
func (s *Store) LoadLocations() ([]*model.Location, error) {
	var locations []*model.Location
	if err := s.readJSON(locationsFile, &locations); err != nil {
		return nil, err
	}

	for _, location := range locations {
		if location.Neighbors == nil {
			location.Neighbors = []string{}
		}
	}

	return locations, nil
}

// SaveLocations rewrites the whole location collection
func (s *Store) SaveLocations(locations []*model.Location) error {
	if locations == nil {
		locations = []*model.Location{}
	}
	return s.writeJSON(locationsFile, locations)
}

// LoadStructure loads the ordered chapter manifest. Entries missing time info
// or a volume reference are defaulted, which keeps manifests written by older
// versions loadable.
func (s *Store) LoadStructure() ([]*model.Chapter, error) {
	var raw []json.RawMessage
	if err := s.readJSON(structureFile, &raw); err != nil {
		return nil, err
	}

	chapters := make([]*model.Chapter, 0, len(raw))
	for _, entry := range raw {
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(entry, &fields); err != nil {
			return nil, helper.NewError("unmarshal "+structureFile, err)
		}

		chapter := &model.Chapter{TimeInfo: model.UnknownTimeInfo()}
		if err := json.Unmarshal(entry, chapter); err != nil {
			return nil, helper.NewError("unmarshal "+structureFile, err)
		}
		if _, ok := fields["time_info"]; !ok {
			chapter.TimeInfo = model.UnknownTimeInfo()
		}
		if chapter.TimeInfo.Events == nil {
			chapter.TimeInfo.Events = []string{}
		}
		if chapter.VolumeID == "" {
			chapter.VolumeID = DefaultVolumeID
		}

		chapters = append(chapters, chapter)
	}

	return chapters, nil
}

// SaveStructure rewrites the whole chapter manifest
func (s *Store) SaveStructure(chapters []*model.Chapter) error {
	if chapters == nil {
		chapters = []*model.Chapter{}
	}
	return s.writeJSON(structureFile, chapters)
}

// LoadVolumes loads the volume list
func (s *Store) LoadVolumes() ([]*model.Volume, error) {
	var volumes []*model.Volume
	if err := s.readJSON(volumesFile, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

// SaveVolumes rewrites the volume list
func (s *Store) SaveVolumes(volumes []*model.Volume) error {
	if volumes == nil {
		volumes = []*model.Volume{}
	}
	return s.writeJSON(volumesFile, volumes)
}

// LoadSettings loads the book-level setting texts
func (s *Store) LoadSettings() (*model.Settings, error) {
	settings := &model.Settings{}
	if err := s.readJSON(settingsFile, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings rewrites the book-level setting texts
func (s *Store) SaveSettings(settings *model.Settings) error {
	return s.writeJSON(settingsFile, settings)
}

func (s *Store) chapterPath(chapterID int) string {
	return filepath.Join(s.baseDir, chaptersDir, fmt.Sprintf("%d.txt", chapterID))
}

// SaveChapterContent writes a chapter's text atomically
func (s *Store) SaveChapterContent(chapterID int, content string) error {
	path := s.chapterPath(chapterID)
	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return helper.NewError("write chapter content", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return helper.NewError("rename chapter content", err)
	}

	return nil
}

// LoadChapterContent reads a chapter's text; a chapter without a text file
// yields an empty string
func (s *Store) LoadChapterContent(chapterID int) (string, error) {
	path := s.chapterPath(chapterID)
	lock := s.fileLock(path)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", helper.NewError("read chapter content", err)
	}

	return string(content), nil
}

// DeleteChapterContent removes a chapter's text file; deleting a chapter
// that never had text is a no-op
func (s *Store) DeleteChapterContent(chapterID int) error {
	path := s.chapterPath(chapterID)
	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return helper.NewError("delete chapter content", err)
	}

	return nil
}

// TotalWordCount sums the character counts of all chapter texts in the manifest
func (s *Store) TotalWordCount() (int, error) {
	chapters, err := s.LoadStructure()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, chapter := range chapters {
		content, err := s.LoadChapterContent(chapter.ID)
		if err != nil {
			return 0, err
		}
		total += utf8.RuneCountInString(content)
	}

	return total, nil
}
