package store

import (
	"context"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestSchema(t *testing.T) {
	convey.Convey("The embedded schema", t, func() {
		s := Schema()

		convey.Convey("Creates every table the repository queries", func() {
			for _, table := range []string{"students", "rooms", "class_sessions", "attendance_records", "audit_log"} {
				convey.So(s, convey.ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS "+table)
			}
		})

		convey.Convey("Enforces one record per student, session and day", func() {
			convey.So(s, convey.ShouldContainSubstring, "UNIQUE (student_id, session_id, attendance_day)")
		})

		convey.Convey("Is idempotent", func() {
			for _, stmt := range strings.Split(s, ";") {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				convey.So(stmt, convey.ShouldContainSubstring, "IF NOT EXISTS")
			}
		})
	})
}

func TestNilHandles(t *testing.T) {
	convey.Convey("Nil store handles are safe", t, func() {
		var db *DB
		var rds *Redis
		convey.So(db.Healthy(context.Background()), convey.ShouldBeFalse)
		convey.So(db.Close(), convey.ShouldBeNil)
		convey.So(rds.Healthy(context.Background()), convey.ShouldBeFalse)
		convey.So(rds.Close(), convey.ShouldBeNil)
	})
}
