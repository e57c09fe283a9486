package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/classifier"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("image not found")

// ImageRecord is the durable metadata of one uploaded image. A nil Results
// slice means the image has not been classified; Processed is true iff
// Results is non-empty.
type ImageRecord struct {
	ID         int                     `json:"id"`
	Filename   string                  `json:"filename"`
	Path       string                  `json:"path"`
	UploadDate time.Time               `json:"upload_date"`
	Processed  bool                    `json:"processed"`
	Results    []classifier.Prediction `json:"results"`
	MimeType   string                  `json:"mime_type"`
	SizeBytes  int64                   `json:"size_bytes"`
}

// MetadataStore persists image records in a single JSON file. Every mutation
// is a full read-modify-write cycle serialized by the mutex, so concurrent
// requests cannot interleave partial updates. It owns the records; callers
// only ever see copies loaded from disk.
type MetadataStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// New creates a store backed by the JSON file at path. The file is created
// lazily on the first mutation.
func New(path string, logger *zap.Logger) *MetadataStore {
	return &MetadataStore{path: path, logger: logger.Named("store")}
}

// NextID returns one greater than the current maximum id, or 1 for an empty
// store.
func (s *MetadataStore) NextID() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}
	return nextID(records), nil
}

// Add persists a new record with a fresh id and returns it.
func (s *MetadataStore) Add(filename, path, mimeType string, sizeBytes int64) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	record := ImageRecord{
		ID:         nextID(records),
		Filename:   filename,
		Path:       path,
		UploadDate: time.Now().UTC(),
		Processed:  false,
		Results:    nil,
		MimeType:   mimeType,
		SizeBytes:  sizeBytes,
	}
	records = append(records, record)
	if err := s.save(records); err != nil {
		return nil, err
	}
	s.logger.Info("image added", zap.Int("id", record.ID), zap.String("filename", filename))
	return &record, nil
}

// GetAll returns every record in on-disk order.
func (s *MetadataStore) GetAll() ([]ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// GetByID returns the record with the given id, or ErrNotFound.
func (s *MetadataStore) GetByID(id int) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			record := records[i]
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateResults marks the record processed and stores its predictions.
// Returns ErrNotFound for an unknown id; a record is never created here.
func (s *MetadataStore) UpdateResults(id int, predictions []classifier.Prediction) (*ImageRecord, error) {
	return s.mutate(id, func(record *ImageRecord) {
		record.Processed = true
		record.Results = predictions
	})
}

// ResetResults clears the classification state so the image can be processed
// again.
func (s *MetadataStore) ResetResults(id int) (*ImageRecord, error) {
	return s.mutate(id, func(record *ImageRecord) {
		record.Processed = false
		record.Results = nil
	})
}

// DeleteByID removes the record and reports whether it existed. Removing the
// backing file on disk is the caller's responsibility.
func (s *MetadataStore) DeleteByID(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}

	kept := records[:0]
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}
	s.logger.Info("image record deleted", zap.Int("id", id))
	return true, nil
}

func (s *MetadataStore) mutate(id int, apply func(*ImageRecord)) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			apply(&records[i])
			if err := s.save(records); err != nil {
				return nil, err
			}
			record := records[i]
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

// load reads the whole metadata file. A missing file is an empty store. An
// unparsable file is moved aside to a timestamped backup and reported, then
// treated as empty, so a corrupt store never silently overwrites prior data.
func (s *MetadataStore) load() ([]ImageRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	var records []ImageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			s.logger.Error("metadata file is corrupt and could not be backed up",
				zap.Error(err), zap.NamedError("backup_error", renameErr))
		} else {
			s.logger.Error("metadata file is corrupt, moved aside and starting empty",
				zap.Error(err), zap.String("backup", backup))
		}
		return nil, nil
	}
	return records, nil
}

func (s *MetadataStore) save(records []ImageRecord) error {
	if records == nil {
		records = []ImageRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	// Write-then-rename keeps the previous file intact if the write dies
	// halfway.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace metadata file: %w", err)
	}
	return nil
}

func nextID(records []ImageRecord) int {
	maxID := 0
	for _, record := range records {
		if record.ID > maxID {
			maxID = record.ID
		}
	}
	return maxID + 1
}
