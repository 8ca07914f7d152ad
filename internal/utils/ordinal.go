package utils

import (
	"math"
	"time"
)

// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01,
// counting 0001-01-01 as day 1.
const unixEpochOrdinal = 719163

const secondsPerDay = 86400

func OrdinalDay(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Unix()/secondsPerDay) + unixEpochOrdinal
}

// RoundDays rounds half to even, so 2.5 becomes 2 and 3.5 becomes 4.
func RoundDays(v float64) int {
	return int(math.RoundToEven(v))
}
