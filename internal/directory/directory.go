// internal/directory/directory.go
package directory

import (
	"errors"
	"fmt"

	"github.com/tamzrod/ecomanager-rx/internal/sensor"
)

var (
	ErrAlreadyPresent   = errors.New("directory: id already present")
	ErrNotFound         = errors.New("directory: id not found")
	ErrCapacityExceeded = errors.New("directory: capacity exceeded")
	ErrEmpty            = errors.New("directory: empty")
)

// DefaultCapacity applies when New is given a capacity <= 0.
const DefaultCapacity = 64

// Directory holds sensor records sorted ascending by ID.
// It is not safe for concurrent use; the scheduler owns it.
type Directory struct {
	name     string
	capacity int
	strategy sensor.Strategy

	records      []*sensor.Record
	minID, maxID uint32
	cursor       int
}

// New creates an empty directory.
// strategy picks the period estimator given to inserted records.
func New(name string, capacity int, strategy sensor.Strategy) (*Directory, error) {
	if name == "" {
		return nil, errors.New("directory: name required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if _, err := sensor.NewEstimator(strategy); err != nil {
		return nil, err
	}
	return &Directory{
		name:     name,
		capacity: capacity,
		strategy: strategy,
		records:  make([]*sensor.Record, 0, capacity),
	}, nil
}

func (d *Directory) Name() string  { return d.name }
func (d *Directory) Len() int      { return len(d.records) }
func (d *Directory) Capacity() int { return d.capacity }
func (d *Directory) Cursor() int   { return d.cursor }

// Find returns the index of id and true, or the index id would occupy
// and false.
//
// The search is seeded by interpolating id between the smallest and largest
// IDs, then walks to the exact position.
func (d *Directory) Find(id uint32) (int, bool) {
	n := len(d.records)
	if n == 0 || id < d.minID {
		return 0, false
	}
	if id > d.maxID {
		return n, false
	}

	idx := 0
	if span := d.maxID - d.minID; span > 0 && n > 1 {
		idx = int(uint64(id-d.minID) * uint64(n-1) / uint64(span))
		if idx >= n {
			idx = n - 1
		}
	}

	for idx > 0 && d.records[idx].ID > id {
		idx--
	}
	for idx < n && d.records[idx].ID < id {
		idx++
	}

	return idx, idx < n && d.records[idx].ID == id
}

// Get returns the record for id, or nil.
func (d *Directory) Get(id uint32) *sensor.Record {
	if i, ok := d.Find(id); ok {
		return d.records[i]
	}
	return nil
}

// Contains reports whether id is present.
func (d *Directory) Contains(id uint32) bool {
	_, ok := d.Find(id)
	return ok
}

// Insert adds a record for id with default state, keeping sort order.
func (d *Directory) Insert(id uint32) (*sensor.Record, error) {
	idx, found := d.Find(id)
	if found {
		return nil, fmt.Errorf("%s %d: %w", d.name, id, ErrAlreadyPresent)
	}
	if len(d.records) >= d.capacity {
		return nil, fmt.Errorf("%s %d (max %d): %w", d.name, id, d.capacity, ErrCapacityExceeded)
	}

	est, err := sensor.NewEstimator(d.strategy)
	if err != nil {
		return nil, err
	}
	rec := sensor.NewRecord(id, est)

	d.records = append(d.records, nil)
	copy(d.records[idx+1:], d.records[idx:])
	d.records[idx] = rec

	if len(d.records) == 1 {
		d.minID, d.maxID = id, id
	} else if id < d.minID {
		d.minID = id
	} else if id > d.maxID {
		d.maxID = id
	}

	// keep the cursor on the same record
	if len(d.records) > 1 && idx <= d.cursor {
		d.cursor++
	}

	return rec, nil
}

// Remove deletes the record for id.
func (d *Directory) Remove(id uint32) error {
	idx, found := d.Find(id)
	if !found {
		return fmt.Errorf("%s %d: %w", d.name, id, ErrNotFound)
	}

	copy(d.records[idx:], d.records[idx+1:])
	d.records[len(d.records)-1] = nil
	d.records = d.records[:len(d.records)-1]

	n := len(d.records)
	switch {
	case n == 0:
		d.minID, d.maxID = 0, 0
	case idx == 0:
		d.minID = d.records[0].ID
	case idx == n:
		d.maxID = d.records[n-1].ID
	}

	if idx < d.cursor {
		d.cursor--
	}
	if d.cursor >= n {
		d.cursor = 0
	}

	return nil
}

// Clear removes every record.
func (d *Directory) Clear() {
	for i := range d.records {
		d.records[i] = nil
	}
	d.records = d.records[:0]
	d.minID, d.maxID = 0, 0
	d.cursor = 0
}

// Current returns the record under the round-robin cursor.
func (d *Directory) Current() (*sensor.Record, error) {
	if len(d.records) == 0 {
		return nil, ErrEmpty
	}
	return d.records[d.cursor], nil
}

// Advance moves the cursor to the next record, wrapping to 0.
func (d *Directory) Advance() {
	if len(d.records) == 0 {
		d.cursor = 0
		return
	}
	d.cursor = (d.cursor + 1) % len(d.records)
}

// At returns the record at index i.
func (d *Directory) At(i int) *sensor.Record { return d.records[i] }

// Records returns a copy of the records in ID order.
// The records themselves are shared, not copied.
func (d *Directory) Records() []*sensor.Record {
	out := make([]*sensor.Record, len(d.records))
	copy(out, d.records)
	return out
}

// IDs returns the identifiers in ascending order.
func (d *Directory) IDs() []uint32 {
	out := make([]uint32, len(d.records))
	for i, r := range d.records {
		out[i] = r.ID
	}
	return out
}
