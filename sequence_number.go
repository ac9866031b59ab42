package arataga

// SequenceNumber is a monotonically increasing tick counter maintained
// per [BandlimManager] (§3 "Tick sequence number"). Bandwidth state is
// tagged with the sequence number it belongs to; a stale tag implies the
// quota it describes has rolled over into a later tick.
type SequenceNumber uint64

func (s *SequenceNumber) increment() { *s++ }
