package arataga

import (
	"io"
	"net"
	"time"
)

// defaultIOChunkSize bounds a single read/write so bandwidth accounting
// can check the remaining quota between chunks instead of only once per
// connection (§4.4 "Data transfer"), used when an ACL leaves ChunkSize
// unset.
const defaultIOChunkSize = 1024

// dataTransferOptions carries everything data_transfer needs to shuttle
// bytes between the client and the target while enforcing the user's
// general and per-domain bandwidth limits (§4.4).
type dataTransferOptions struct {
	Client net.Conn
	Target net.Conn

	Bandlim    *BandlimManager
	DomainHand DomainTrafficHandle
	HasDomain  bool

	IdleTimeout time.Duration
	ChunkSize   int
}

// runDataTransfer shuttles bytes in both directions until either side
// closes or an I/O error occurs, and returns the [RemovalReason] that
// classifies how the connection ended (§4.4, §6).
func runDataTransfer(opt dataTransferOptions) RemovalReason {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = defaultIOChunkSize
	}
	errc := make(chan error, 2)

	go func() {
		errc <- bandwidthCopy(opt.Target, opt.Client, opt, true)
	}()
	go func() {
		errc <- bandwidthCopy(opt.Client, opt.Target, opt, false)
	}()

	first := <-errc
	opt.Client.Close()
	opt.Target.Close()
	<-errc

	return classifyTransferError(first)
}

func classifyTransferError(err error) RemovalReason {
	if err == nil || err == io.EOF {
		return ReasonNormalCompletion
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ReasonNoActivityForTooLong
	}
	return ReasonIOError
}

// bandwidthCopy copies from src to dst in chunks no larger than the
// quota currently available for the direction the copy represents
// (userToTarget selects which of the channel's two directions is
// consumed), blocking until the next tick replenishes the allowance
// when it is exhausted (§4.4 "Bandwidth-aware pipe").
func bandwidthCopy(dst, src net.Conn, opt dataTransferOptions, userToTarget bool) error {
	buf := make([]byte, opt.ChunkSize)
	for {
		if opt.IdleTimeout > 0 {
			src.SetReadDeadline(time.Now().Add(opt.IdleTimeout))
		}
		allowance := waitForAllowance(opt, userToTarget, len(buf))
		n, err := src.Read(buf[:allowance])
		if n > 0 {
			consumeAllowance(opt, userToTarget, uint64(n))
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

// waitForAllowance blocks until at least one byte of quota is available
// for this direction, polling every 50ms; general and
// per-domain limits both apply, so the smaller allowance wins (§4.5
// "general_traffic and domain traffic both constrain a connection").
func waitForAllowance(opt dataTransferOptions, userToTarget bool, max int) int {
	for {
		var allowance uint64
		opt.Bandlim.WithGeneralTraffic(func(ch *ChannelLimitsData) {
			allowance = directionAllowance(ch, userToTarget)
		})
		if opt.HasDomain {
			opt.Bandlim.WithDomainTraffic(opt.DomainHand, func(dom *ChannelLimitsData) {
				if dom == nil {
					return
				}
				if a := directionAllowance(dom, userToTarget); a < allowance {
					allowance = a
				}
			})
		}
		if allowance > 0 {
			if allowance > uint64(max) {
				return max
			}
			return int(allowance)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func directionAllowance(ch *ChannelLimitsData, userToTarget bool) uint64 {
	dir := &ch.TargetEndTraffic
	if userToTarget {
		dir = &ch.UserEndTraffic
	}
	quote := dir.Quote.Value()
	consumed := dir.Reserved + dir.Actual
	if consumed >= quote {
		return 0
	}
	return quote - consumed
}

func consumeAllowance(opt dataTransferOptions, userToTarget bool, n uint64) {
	opt.Bandlim.WithGeneralTraffic(func(ch *ChannelLimitsData) {
		addConsumed(ch, userToTarget, n)
	})
	if opt.HasDomain {
		opt.Bandlim.WithDomainTraffic(opt.DomainHand, func(ch *ChannelLimitsData) {
			if ch != nil {
				addConsumed(ch, userToTarget, n)
			}
		})
	}
}

func addConsumed(ch *ChannelLimitsData, userToTarget bool, n uint64) {
	if userToTarget {
		ch.UserEndTraffic.Actual += n
	} else {
		ch.TargetEndTraffic.Actual += n
	}
}
