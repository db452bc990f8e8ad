package object

import (
	"time"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

// FileAccessMethod values for the File_Access_Method property.
const (
	FileAccessRecord uint32 = 0
	FileAccessStream uint32 = 1
)

func fileDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropFileType:         {ID: PropFileType, Access: ReadOnly, Required: true},
		PropFileSize:         {ID: PropFileSize, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(0)},
		PropModificationDate: {ID: PropModificationDate, Access: ReadOnly, Required: true},
		PropArchive:          {ID: PropArchive, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropReadOnly:         {ID: PropReadOnly, Access: ReadOnly, Required: true, Default: bactypes.Boolean(false)},
		PropFileAccessMethod: {ID: PropFileAccessMethod, Access: ReadOnly, Required: true, Default: bactypes.Enumerated(FileAccessStream)},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// File is a stream-access File object: a byte buffer served by
// AtomicReadFile/AtomicWriteFile. Record access is not implemented — the
// File_Access_Method property always reports stream.
type File struct {
	*Base
	data     []byte
	readOnly bool
	now      func() time.Time
}

// NewFile builds an empty stream-access File object. fileType is the
// free-form File_Type string ("firmware", "configuration", ...).
func NewFile(id bactypes.ObjectID, name, fileType string) *File {
	b := NewBase(id, name, fileDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropFileType, bactypes.CharacterString{Value: fileType})
	b.SetRaw(PropFileSize, bactypes.Unsigned(0))
	f := &File{Base: b, now: time.Now}
	f.touch()
	return f
}

// SetReadOnly marks the file non-writable; subsequent WriteStream calls
// fail with file-access-denied.
func (f *File) SetReadOnly(ro bool) {
	f.readOnly = ro
	f.SetRaw(PropReadOnly, bactypes.Boolean(ro))
}

// SetContents replaces the whole buffer, bypassing the read-only flag —
// this is the application seeding the file, not a protocol write.
func (f *File) SetContents(data []byte) {
	f.data = append([]byte{}, data...)
	f.SetRaw(PropFileSize, bactypes.Unsigned(len(f.data)))
	f.touch()
}

// Size returns the current file size in octets.
func (f *File) Size() int { return len(f.data) }

// ReadStream serves a stream-access AtomicReadFile: count octets starting
// at octet offset start. The returned eof flag is set when the read
// reaches the end of the file.
func (f *File) ReadStream(start int64, count uint64) ([]byte, bool, error) {
	if start < 0 || start > int64(len(f.data)) {
		return nil, false, bacerr.Protocol(bacerr.ClassServices, bacerr.CodeInvalidFileStartPosition)
	}
	end := start + int64(count)
	if end >= int64(len(f.data)) {
		end = int64(len(f.data))
		return append([]byte{}, f.data[start:end]...), true, nil
	}
	return append([]byte{}, f.data[start:end]...), false, nil
}

// WriteStream serves a stream-access AtomicWriteFile. start of -1 appends;
// otherwise the write lands at start, extending the file if it runs past
// the current end. Returns the offset the write actually began at.
func (f *File) WriteStream(start int64, data []byte) (int64, error) {
	if f.readOnly {
		return 0, bacerr.Protocol(bacerr.ClassObject, bacerr.CodeFileAccessDenied)
	}
	if start == -1 {
		start = int64(len(f.data))
	}
	if start < 0 || start > int64(len(f.data)) {
		return 0, bacerr.Protocol(bacerr.ClassServices, bacerr.CodeInvalidFileStartPosition)
	}
	end := start + int64(len(data))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[start:], data)
	f.SetRaw(PropFileSize, bactypes.Unsigned(len(f.data)))
	f.touch()
	return start, nil
}

func (f *File) touch() {
	t := f.now()
	f.SetRaw(PropModificationDate, bactypes.Date{
		Year:      uint8(t.Year() - 1900),
		Month:     uint8(t.Month()),
		Day:       uint8(t.Day()),
		DayOfWeek: bacnetWeekday(t),
	})
}

func bacnetWeekday(t time.Time) uint8 {
	dow := uint8(t.Weekday())
	if dow == 0 {
		return 7
	}
	return dow
}
