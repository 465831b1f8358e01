package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/scanfeed"
)

func TestOpenMemory(t *testing.T) {
	convey.Convey("Given memory backends", t, func() {
		cfg := config.Defaults()
		cfg.StoreBackend = "memory"
		cfg.FeedBackend = "memory"

		res, err := Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

		convey.Convey("Then no network connection is opened", func() {
			convey.So(err, convey.ShouldBeNil)
			_, isMemRepo := res.Repo.(*attendance.MemoryRepository)
			_, isMemFeed := res.Feed.(*scanfeed.InMemory)
			convey.So(isMemRepo, convey.ShouldBeTrue)
			convey.So(isMemFeed, convey.ShouldBeTrue)
			convey.So(res.HealthChecks(), convey.ShouldBeEmpty)
			convey.So(res.Close(), convey.ShouldBeNil)
		})
	})
}
