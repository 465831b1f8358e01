package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state written back onto a scan record.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusRejected  Status = "rejected"
)

// Reasons reported back to the scan origin.
const (
	ReasonIncomplete       = "incomplete scan data"
	ReasonTagNotRegistered = "tag not registered"
	ReasonDeviceUnknown    = "device not recognized"
	ReasonNoSchedule       = "no active schedule in this room"
	ReasonAlreadyRecorded  = "already recorded today"
	ReasonSaved            = "attendance saved"
	ReasonServerError      = "server error"
)

// RecordStatusPresent is the only status the ledger writes.
const RecordStatusPresent = "present"

// AuditEventScan names audit entries written alongside a new record.
const AuditEventScan = "RFID Scan"

// ScanEvent is a single tag read reported by a reader device.
type ScanEvent struct {
	ID         string    `json:"-"`
	Tag        string    `json:"tag" validate:"required"`
	DeviceID   string    `json:"device_id" validate:"required"`
	ReceivedAt time.Time `json:"received_at"`
}

// Outcome is the result written back to the originating scan record.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"response"`
}

func rejected(reason string) Outcome  { return Outcome{Status: StatusRejected, Reason: reason} }
func processed(reason string) Outcome { return Outcome{Status: StatusProcessed, Reason: reason} }

// Student is a roster entry.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RFIDTag    string `json:"rfid_tag"`
	ProgramID  int64  `json:"program_id"`
	SemesterID int64  `json:"semester_id"`
}

// Room is a facilities entry with its reader device.
type Room struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ReaderDeviceTag string `json:"reader_device_tag"`
}

// Session is a recurring class slot.
type Session struct {
	ID         int64        `json:"id"`
	ProgramID  int64        `json:"program_id"`
	SemesterID int64        `json:"semester_id"`
	RoomID     int64        `json:"room_id"`
	Weekday    time.Weekday `json:"weekday"`
}

// Record is a committed attendance row.
type Record struct {
	ID         string    `json:"id"`
	StudentID  int64     `json:"student_id"`
	SessionID  int64     `json:"session_id"`
	RoomID     int64     `json:"room_id"`
	Day        string    `json:"attendance_day"`
	RecordedAt time.Time `json:"recorded_at"`
	Status     string    `json:"status"`
}

// AuditEntry is an append-only log line committed with a record.
type AuditEntry struct {
	Event      string    `json:"event"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Key identifies at most one attendance record.
type Key struct {
	StudentID int64
	SessionID int64
	Day       string
}

// dayLayout is the calendar day format used in keys and the attendance_day column.
const dayLayout = "2006-01-02"

// KeyFor builds the attendance key for the calendar day of now.
func KeyFor(studentID, sessionID int64, now time.Time) Key {
	return Key{StudentID: studentID, SessionID: sessionID, Day: now.Format(dayLayout)}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%s", k.StudentID, k.SessionID, k.Day)
}

// ParseWeekday accepts English day names in any case ("Monday", "monday").
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
