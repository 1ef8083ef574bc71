package smapi

import (
	"errors"
	"path"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotExist is returned by Mock for attributes that were never set.
var ErrNotExist = errors.New("no such attribute")

// WriteRecord is one write observed by a Mock.
type WriteRecord struct {
	Scope Scope
	Attr  Attribute
	Value string
}

var _ Store = &Mock{}

// Mock is an in-memory Store. Reads and writes can be made to fail per
// attribute, and every attempted write is recorded.
type Mock struct {
	mu         sync.Mutex
	values     map[string]string
	readFails  map[string]error
	writeFails map[string]error
	writes     []WriteRecord
}

// NewMock returns a Mock with prefilled values, keyed by "scope/attr"
// (or just "attr" for the root scope).
func NewMock(prefill map[string]string) *Mock {
	m := &Mock{
		values:     make(map[string]string),
		readFails:  make(map[string]error),
		writeFails: make(map[string]error),
	}
	for k, v := range prefill {
		m.values[k] = v
	}
	return m
}

func key(scope Scope, attr Attribute) string {
	return path.Join(string(scope), string(attr))
}

// Set stores value without recording a write.
func (m *Mock) Set(scope Scope, attr Attribute, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key(scope, attr)] = value
}

// Get returns the current value of an attribute.
func (m *Mock) Get(scope Scope, attr Attribute) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key(scope, attr)]
	return v, ok
}

// FailRead makes reads of the attribute fail with err. A nil err clears it.
func (m *Mock) FailRead(scope Scope, attr Attribute, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readFails, key(scope, attr))
		return
	}
	m.readFails[key(scope, attr)] = err
}

// FailWrite makes writes of the attribute fail with err. A nil err clears it.
func (m *Mock) FailWrite(scope Scope, attr Attribute, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.writeFails, key(scope, attr))
		return
	}
	m.writeFails[key(scope, attr)] = err
}

// Writes returns all attempted writes, failed ones included, in order.
func (m *Mock) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]WriteRecord, len(m.writes))
	copy(ret, m.writes)
	return ret
}

// ResetWrites forgets recorded writes.
func (m *Mock) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

func (m *Mock) Read(scope Scope, attr Attribute) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(scope, attr)
	if err, ok := m.readFails[k]; ok {
		return "", &IOError{Op: OpRead, Path: k, Err: err}
	}
	v, ok := m.values[k]
	if !ok {
		return "", &IOError{Op: OpOpen, Path: k, Err: ErrNotExist}
	}
	return v, nil
}

func (m *Mock) Write(scope Scope, attr Attribute, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(scope, attr)
	m.writes = append(m.writes, WriteRecord{Scope: scope, Attr: attr, Value: value})
	if err, ok := m.writeFails[k]; ok {
		return &IOError{Op: OpWrite, Path: k, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"key": k,
		"val": value,
	}).Trace("Write to mock smapi")

	m.values[k] = value
	return nil
}
