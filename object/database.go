package object

import (
	"sort"
	"sync"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

// ChangeCallback is invoked after a successful property write, naming the
// object and property that changed. The COV manager and Trend Log engine
// each register one to drive their own sampling.
type ChangeCallback func(id bactypes.ObjectID, prop PropertyID)

// Database is the single-threaded object store holding every object the
// local device exposes, indexed by identifier, plus the
// change-callback registry that fans a write out to COV/TrendLog. It is
// never accessed from more than one goroutine at a time — callers
// synchronize access the same way the rest of the stack does, by funneling
// all mutation through the application's single dispatch loop. The mutex
// here only guards against the demo programs' convenience goroutines; it
// is not meant to make the database safe for concurrent protocol
// processing.
type Database struct {
	mu      sync.Mutex
	objects map[bactypes.ObjectID]Object
	device  *Device

	callbacks []ChangeCallback
}

// NewDatabase builds an empty object database.
func NewDatabase() *Database {
	return &Database{objects: make(map[bactypes.ObjectID]Object)}
}

// SetDevice installs the mandatory Device object and wires its virtual
// Object_List to this database. It is also added to the object map so
// ReadProperty/WriteProperty against the Device identifier work uniformly.
func (db *Database) SetDevice(d *Device) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d.AttachDatabase(db)
	db.device = d
	db.objects[d.ID()] = d
}

// Device returns the installed Device object, or nil if SetDevice has not
// been called yet.
func (db *Database) Device() *Device {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.device
}

// Add registers obj, returning object-identifier-already-exists if its
// identifier is taken.
func (db *Database) Add(obj Object) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.objects[obj.ID()]; exists {
		return bacerr.Protocol(bacerr.ClassObject, bacerr.CodeObjectIdentifierAlreadyExists)
	}
	db.objects[obj.ID()] = obj
	if db.device != nil {
		db.device.BumpRevision()
	}
	return nil
}

// Remove deletes the object with the given identifier. The Device object
// itself cannot be removed.
func (db *Database) Remove(id bactypes.ObjectID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.device != nil && id.Equal(db.device.ID()) {
		return bacerr.Protocol(bacerr.ClassObject, bacerr.CodeObjectDeletionNotPermitted)
	}
	if _, exists := db.objects[id]; !exists {
		return bacerr.Protocol(bacerr.ClassObject, bacerr.CodeUnknownObject)
	}
	delete(db.objects, id)
	if db.device != nil {
		db.device.BumpRevision()
	}
	return nil
}

// Get looks up an object by identifier.
func (db *Database) Get(id bactypes.ObjectID) (Object, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[id]
	if !ok {
		return nil, bacerr.Protocol(bacerr.ClassObject, bacerr.CodeUnknownObject)
	}
	return obj, nil
}

// List returns every registered object identifier, sorted by (type,
// instance) so Object_List reads are stable across calls.
func (db *Database) List() []bactypes.ObjectID {
	db.mu.Lock()
	defer db.mu.Unlock()
	ids := make([]bactypes.ObjectID, 0, len(db.objects))
	for id := range db.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Type != ids[j].Type {
			return ids[i].Type < ids[j].Type
		}
		return ids[i].Instance < ids[j].Instance
	})
	return ids
}

// OnChange registers a callback invoked after every successful write to
// any object in the database.
func (db *Database) OnChange(cb ChangeCallback) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.callbacks = append(db.callbacks, cb)
}

// Write performs a property write against the named object and fans the
// change out to every registered callback on success. This is the single
// entry point services (WriteProperty, WritePropertyMultiple) should call
// rather than looking up the object and calling Object.Write directly, so
// COV/TrendLog never miss a write.
func (db *Database) Write(id bactypes.ObjectID, prop PropertyID, value bactypes.Value, priority *int, arrayIndex *uint32) error {
	obj, err := db.Get(id)
	if err != nil {
		return err
	}
	if err := obj.Write(prop, value, priority, arrayIndex); err != nil {
		return err
	}
	db.mu.Lock()
	cbs := append([]ChangeCallback{}, db.callbacks...)
	db.mu.Unlock()
	for _, cb := range cbs {
		cb(id, prop)
	}
	return nil
}

// Read performs a property read against the named object.
func (db *Database) Read(id bactypes.ObjectID, prop PropertyID, arrayIndex *uint32) (bactypes.Value, error) {
	obj, err := db.Get(id)
	if err != nil {
		return nil, err
	}
	return obj.Read(prop, arrayIndex)
}
