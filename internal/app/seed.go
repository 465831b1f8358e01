package app

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"rollcall/internal/attendance"
)

// Seed is the roster and timetable loaded into a memory store at startup.
type Seed struct {
	Students []SeedStudent `koanf:"students"`
	Rooms    []SeedRoom    `koanf:"rooms"`
	Sessions []SeedSession `koanf:"sessions"`
}

type SeedStudent struct {
	ID         int64  `koanf:"id"`
	Name       string `koanf:"name"`
	RFIDTag    string `koanf:"rfid_tag"`
	ProgramID  int64  `koanf:"program_id"`
	SemesterID int64  `koanf:"semester_id"`
}

type SeedRoom struct {
	ID              int64  `koanf:"id"`
	Name            string `koanf:"name"`
	ReaderDeviceTag string `koanf:"reader_device_tag"`
}

type SeedSession struct {
	ID         int64  `koanf:"id"`
	ProgramID  int64  `koanf:"program_id"`
	SemesterID int64  `koanf:"semester_id"`
	RoomID     int64  `koanf:"room_id"`
	Weekday    string `koanf:"weekday"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Seed{}, fmt.Errorf("load seed %s: %w", path, err)
	}
	var seed Seed
	if err := k.UnmarshalWithConf("", &seed, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Seed{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return seed, nil
}

// Apply registers every seeded entity in repo. Tags and devices must be
// non-empty and unique, and weekdays must be English day names.
func (s Seed) Apply(repo *attendance.MemoryRepository) error {
	tags := make(map[string]bool, len(s.Students))
	for _, st := range s.Students {
		if st.RFIDTag == "" || tags[st.RFIDTag] {
			return fmt.Errorf("seed student %d: empty or repeated tag %q", st.ID, st.RFIDTag)
		}
		tags[st.RFIDTag] = true
	}
	devices := make(map[string]bool, len(s.Rooms))
	for _, r := range s.Rooms {
		if r.ReaderDeviceTag == "" || devices[r.ReaderDeviceTag] {
			return fmt.Errorf("seed room %d: empty or repeated device %q", r.ID, r.ReaderDeviceTag)
		}
		devices[r.ReaderDeviceTag] = true
	}
	sessions := make([]attendance.Session, 0, len(s.Sessions))
	for _, ss := range s.Sessions {
		day, err := attendance.ParseWeekday(ss.Weekday)
		if err != nil {
			return fmt.Errorf("seed session %d: %w", ss.ID, err)
		}
		sessions = append(sessions, attendance.Session{
			ID: ss.ID, ProgramID: ss.ProgramID, SemesterID: ss.SemesterID, RoomID: ss.RoomID, Weekday: day,
		})
	}

	for _, st := range s.Students {
		repo.AddStudent(attendance.Student{
			ID: st.ID, Name: st.Name, RFIDTag: st.RFIDTag, ProgramID: st.ProgramID, SemesterID: st.SemesterID,
		})
	}
	for _, r := range s.Rooms {
		repo.AddRoom(attendance.Room{ID: r.ID, Name: r.Name, ReaderDeviceTag: r.ReaderDeviceTag})
	}
	for _, ss := range sessions {
		repo.AddSession(ss)
	}
	return nil
}
