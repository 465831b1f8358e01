package scanfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"rollcall/internal/attendance"
)

func TestInMemoryFeed(t *testing.T) {
	convey.Convey("Given an empty in-memory feed", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		feed := NewInMemory(8)

		convey.Convey("Latest reports that nothing was scanned", func() {
			_, err := feed.Latest(ctx)
			convey.So(errors.Is(err, ErrNoScans), convey.ShouldBeTrue)
		})

		convey.Convey("When scans are appended", func() {
			id1, err := feed.Append(ctx, attendance.ScanEvent{Tag: "T1", DeviceID: "D1"})
			convey.So(err, convey.ShouldBeNil)
			id2, err := feed.Append(ctx, attendance.ScanEvent{ID: "fixed", Tag: "T2", DeviceID: "D1"})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then ids are assigned and latest follows the last append", func() {
				convey.So(id1, convey.ShouldNotBeEmpty)
				convey.So(id2, convey.ShouldEqual, "fixed")
				latest, err := feed.Latest(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(latest.Tag, convey.ShouldEqual, "T2")
				convey.So(latest.ReceivedAt.IsZero(), convey.ShouldBeFalse)
			})

			convey.Convey("Then subscribers receive them in order", func() {
				events, err := feed.Subscribe(ctx)
				convey.So(err, convey.ShouldBeNil)
				first := <-events
				second := <-events
				convey.So(first.ID, convey.ShouldEqual, id1)
				convey.So(second.Tag, convey.ShouldEqual, "T2")
			})

			convey.Convey("Then outcomes are written back onto the record", func() {
				err := feed.WriteOutcome(ctx, id2, attendance.Outcome{Status: attendance.StatusProcessed, Reason: attendance.ReasonSaved})
				convey.So(err, convey.ShouldBeNil)
				rec, ok := feed.Get(id2)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rec.Status, convey.ShouldEqual, "processed")
				convey.So(rec.Response, convey.ShouldEqual, attendance.ReasonSaved)
			})
		})

		convey.Convey("Writing back an unknown scan fails", func() {
			err := feed.WriteOutcome(ctx, "missing", attendance.Outcome{})
			convey.So(errors.Is(err, ErrUnknownScan), convey.ShouldBeTrue)
		})

		convey.Convey("A scan taken off the queue at shutdown is put back", func() {
			id, _ := feed.Append(ctx, attendance.ScanEvent{Tag: "T1", DeviceID: "D1"})
			events, _ := feed.Subscribe(ctx)
			deadline := time.Now().Add(time.Second)
			for len(feed.ch) > 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			cancel()

			var delivered []attendance.ScanEvent
			for evt := range events {
				delivered = append(delivered, evt)
			}
			convey.So(len(delivered)+len(feed.ch), convey.ShouldEqual, 1)
			if len(delivered) == 1 {
				convey.So(delivered[0].ID, convey.ShouldEqual, id)
			} else {
				convey.So(<-feed.ch, convey.ShouldEqual, id)
			}
		})

		convey.Convey("The subscription closes when the context ends", func() {
			events, _ := feed.Subscribe(ctx)
			cancel()
			select {
			case _, ok := <-events:
				convey.So(ok, convey.ShouldBeFalse)
			case <-time.After(time.Second):
				t.Fatal("subscription did not close")
			}
		})
	})
}

func TestDecodeRecord(t *testing.T) {
	convey.Convey("Given a scan hash from redis", t, func() {
		convey.Convey("Complete fields are decoded", func() {
			rec := decodeRecord("abc", map[string]string{
				"tag":         "T100",
				"device_id":   "D9",
				"received_at": "2026-10-14T08:30:00Z",
				"status":      "processed",
				"response":    "attendance saved",
			})
			convey.So(rec.ID, convey.ShouldEqual, "abc")
			convey.So(rec.Event().Tag, convey.ShouldEqual, "T100")
			convey.So(rec.ReceivedAt.Equal(time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)), convey.ShouldBeTrue)
			convey.So(rec.Response, convey.ShouldEqual, "attendance saved")
		})

		convey.Convey("Missing fields stay empty for the pipeline to reject", func() {
			rec := decodeRecord("abc", map[string]string{"tag": "T100", "received_at": "garbage"})
			convey.So(rec.DeviceID, convey.ShouldBeEmpty)
			convey.So(rec.ReceivedAt.IsZero(), convey.ShouldBeTrue)
		})
	})
}
