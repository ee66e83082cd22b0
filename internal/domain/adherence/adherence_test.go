package adherence_test

import (
	"testing"

	"github.com/okian/dosewatch/internal/domain/adherence"
	"github.com/okian/dosewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Given a day's prior event counts", t, func() {
		Convey("Then a first on-time event scores 100", func() {
			So(adherence.Score(0, 0, model.AnomalyOnTime), ShouldEqual, 100)
		})

		Convey("Then a first anomalous event scores 0", func() {
			So(adherence.Score(0, 0, model.AnomalyWrongCount), ShouldEqual, 0)
		})

		Convey("Then 4 good prior events plus one anomaly scores 80", func() {
			So(adherence.Score(4, 0, model.AnomalyTooLate), ShouldEqual, 80)
		})

		Convey("Then adding anomalies is non-increasing", func() {
			prev := 101
			for bad := 0; bad <= 9; bad++ {
				got := adherence.Score(9, bad, model.AnomalyTooEarly)
				So(got, ShouldBeLessThanOrEqualTo, prev)
				prev = got
			}
		})

		Convey("Then an on-time event never lowers the day below its ratio", func() {
			// 3 prior, 1 bad, new on-time: round(100*(1-1/4)) = 75
			So(adherence.Score(3, 1, model.AnomalyOnTime), ShouldEqual, 75)
		})

		Convey("Then results stay within [0,100]", func() {
			So(adherence.Score(0, 0, model.AnomalyOnTime), ShouldBeBetweenOrEqual, 0, 100)
			So(adherence.Score(50, 50, model.AnomalyWrongCount), ShouldBeBetweenOrEqual, 0, 100)
		})
	})
}
