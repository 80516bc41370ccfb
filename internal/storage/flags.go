package storage

// Flags control how a tree file is opened. ReadOnly is the zero value;
// the unique/multi bits are derived by the container types and recorded
// in the file header, never passed by callers.

type Flags uint32

const (
	ReadOnly  Flags = 0
	ReadWrite Flags = 1 << 0
	Truncate  Flags = 1 << 1
	Preload   Flags = 1 << 2

	// Set by the container layer, recorded in the header.
	Unique Flags = 1 << 16
	Multi  Flags = 1 << 17
)

const userFlagMask = ReadWrite | Truncate | Preload

func (f Flags) readWrite() bool { return f&ReadWrite != 0 }
func (f Flags) truncate() bool  { return f&Truncate != 0 }
func (f Flags) preload() bool   { return f&Preload != 0 }
func (f Flags) unique() bool    { return f&Unique != 0 }
func (f Flags) multi() bool     { return f&Multi != 0 }

// unknown reports whether f carries bits outside the recognized set.
func (f Flags) unknown() bool {
	return f&^(userFlagMask|Unique|Multi) != 0
}
