package attendance

import (
	"context"
	"fmt"
)

// Directory looks up roster and facilities data. A nil result with a nil
// error means no row matched.
type Directory interface {
	StudentByTag(ctx context.Context, tag string) (*Student, error)
	RoomByDevice(ctx context.Context, deviceTag string) (*Room, error)
}

// Resolver maps tags to students and reader devices to rooms.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveStudent returns the student whose tag equals tag exactly.
func (r *Resolver) ResolveStudent(ctx context.Context, tag string) (Student, error) {
	if tag == "" {
		return Student{}, ErrIncompleteScan
	}
	st, err := r.dir.StudentByTag(ctx, tag)
	if err != nil {
		return Student{}, fmt.Errorf("lookup student by tag: %w", err)
	}
	if st == nil {
		return Student{}, ErrTagNotRegistered
	}
	return *st, nil
}

// ResolveRoom returns the room whose reader device equals deviceID exactly.
func (r *Resolver) ResolveRoom(ctx context.Context, deviceID string) (Room, error) {
	if deviceID == "" {
		return Room{}, ErrIncompleteScan
	}
	room, err := r.dir.RoomByDevice(ctx, deviceID)
	if err != nil {
		return Room{}, fmt.Errorf("lookup room by device: %w", err)
	}
	if room == nil {
		return Room{}, ErrDeviceNotRecognized
	}
	return *room, nil
}
