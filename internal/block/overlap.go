package block

import "time"

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect. Intervals that share only a boundary instant (e1 == s2 or
// e2 == s1) do not overlap, so back-to-back blocks are always accepted.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Conflicts reports whether the candidate window [start,end) collides with b.
func (b *Block) Conflicts(start, end time.Time) bool {
	return Overlaps(b.StartTime, b.EndTime, start, end)
}
