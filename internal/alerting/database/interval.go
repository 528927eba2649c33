package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const microsPerDay = int64(24 * time.Hour / time.Microsecond)

// durationToPgInterval splits d into whole days plus microseconds. Months are
// never used since their length is not fixed.
func durationToPgInterval(d time.Duration) pgtype.Interval {
	micros := d.Microseconds()
	return pgtype.Interval{
		Days:         int32(micros / microsPerDay),
		Microseconds: micros % microsPerDay,
		Valid:        true,
	}
}

func pgIntervalToDuration(iv pgtype.Interval) (time.Duration, error) {
	if !iv.Valid {
		return 0, fmt.Errorf("interval is null")
	}
	if iv.Months != 0 {
		return 0, fmt.Errorf("interval with months cannot be converted to a duration")
	}
	return time.Duration(int64(iv.Days)*microsPerDay+iv.Microseconds) * time.Microsecond, nil
}
