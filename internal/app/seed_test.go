package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
)

const seedYAML = `
students:
  - id: 1
    name: Ayu
    rfid_tag: T100
    program_id: 5
    semester_id: 2
rooms:
  - id: 10
    name: Lab 1
    reader_device_tag: D9
sessions:
  - id: 100
    program_id: 5
    semester_id: 2
    room_id: 10
    weekday: wednesday
`

func writeSeed(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSeed(t *testing.T) {
	convey.Convey("Given a seed file", t, func() {
		ctx := context.Background()

		convey.Convey("It loads students, rooms and sessions", func() {
			seed, err := LoadSeed(writeSeed(t, seedYAML))
			convey.So(err, convey.ShouldBeNil)
			convey.So(seed.Students, convey.ShouldHaveLength, 1)
			convey.So(seed.Students[0].RFIDTag, convey.ShouldEqual, "T100")
			convey.So(seed.Sessions[0].Weekday, convey.ShouldEqual, "wednesday")

			repo := attendance.NewMemoryRepository()
			convey.So(seed.Apply(repo), convey.ShouldBeNil)

			st, err := repo.StudentByTag(ctx, "T100")
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.ProgramID, convey.ShouldEqual, int64(5))
			sessions, err := repo.SessionsFor(ctx, 5, 2, 10, time.Wednesday)
			convey.So(err, convey.ShouldBeNil)
			convey.So(sessions, convey.ShouldHaveLength, 1)
		})

		convey.Convey("A weekday that is not an English day name is refused", func() {
			seed := Seed{Sessions: []SeedSession{{ID: 1, Weekday: "Rabu"}}}
			repo := attendance.NewMemoryRepository()
			convey.So(seed.Apply(repo), convey.ShouldNotBeNil)
			sessions, _ := repo.SessionsFor(ctx, 0, 0, 0, time.Wednesday)
			convey.So(sessions, convey.ShouldBeEmpty)
		})

		convey.Convey("A repeated tag is refused", func() {
			seed := Seed{Students: []SeedStudent{{ID: 1, RFIDTag: "T1"}, {ID: 2, RFIDTag: "T1"}}}
			convey.So(seed.Apply(attendance.NewMemoryRepository()), convey.ShouldNotBeNil)
		})

		convey.Convey("A missing file is an error", func() {
			_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Open seeds the memory store so scans can be recorded", func() {
			cfg := config.Defaults()
			cfg.StoreBackend = "memory"
			cfg.FeedBackend = "memory"
			cfg.SeedFile = writeSeed(t, seedYAML)

			res, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
			convey.So(err, convey.ShouldBeNil)

			now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
			p := attendance.NewPipeline(
				attendance.NewResolver(res.Repo),
				attendance.NewScheduleMatcher(res.Repo),
				attendance.NewLedger(res.Repo),
				attendance.WithLocation(time.UTC),
				attendance.WithClock(func() time.Time { return now }),
			)
			out := p.Process(ctx, attendance.ScanEvent{ID: "s1", Tag: "T100", DeviceID: "D9", ReceivedAt: now})
			convey.So(out.Status, convey.ShouldEqual, attendance.StatusProcessed)
			convey.So(out.Reason, convey.ShouldEqual, attendance.ReasonSaved)
		})
	})
}
