// Package segmentation implements the pure window-management state
// machines used by both the client and server Transaction State Machines
// to split an oversized service payload into segments and reassemble a
// segmented request/response back into one buffer.
package segmentation

import "github.com/bacgo/bacnet/bacerr"

// Segment splits data into chunks no larger than maxSize bytes. The final
// chunk may be shorter; data shorter than maxSize produces one segment.
func Segment(data []byte, maxSize int) [][]byte {
	if maxSize <= 0 {
		maxSize = len(data)
	}
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var segs [][]byte
	for i := 0; i < len(data); i += maxSize {
		end := i + maxSize
		if end > len(data) {
			end = len(data)
		}
		segs = append(segs, data[i:end])
	}
	return segs
}

// Sender tracks an outbound segmented transfer's sliding window: which
// segments have been sent and acknowledged, and how many more may be sent
// before waiting for the next Segment-ACK.
type Sender struct {
	segments   [][]byte
	windowSize int
	nextToSend int // sequence number of the next unsent segment
	acked      int // highest acknowledged sequence number + 1 (i.e. count acked)
}

// NewSender builds a Sender for the given pre-split segments and initial
// negotiated window size (1..128, enforced by the caller).
// peerMaxSegments is the peer's advertised segment limit; a transfer
// needing more segments aborts with APDU-too-long before anything goes on
// the wire. Pass 0 when the peer's limit is unspecified.
func NewSender(segments [][]byte, windowSize int, peerMaxSegments int) (*Sender, error) {
	if peerMaxSegments > 0 && len(segments) > peerMaxSegments {
		return nil, bacerr.Abort(bacerr.AbortAPDUTooLong)
	}
	return &Sender{segments: segments, windowSize: windowSize}, nil
}

// Done reports whether every segment has been acknowledged.
func (s *Sender) Done() bool { return s.acked >= len(s.segments) }

// TotalSegments returns the segment count.
func (s *Sender) TotalSegments() int { return len(s.segments) }

// FillWindow returns the next batch of segments to transmit: those with
// sequence numbers in [acked, acked+windowSize) not yet sent. Each returned
// entry pairs the sequence number with its payload and the more-follows
// flag for the final segment in the whole transfer.
type OutSegment struct {
	SequenceNumber int
	Data           []byte
	MoreFollows    bool
}

func (s *Sender) FillWindow() []OutSegment {
	var out []OutSegment
	limit := s.acked + s.windowSize
	if limit > len(s.segments) {
		limit = len(s.segments)
	}
	for seq := s.nextToSend; seq < limit; seq++ {
		out = append(out, OutSegment{
			SequenceNumber: seq,
			Data:           s.segments[seq],
			MoreFollows:    seq != len(s.segments)-1,
		})
	}
	s.nextToSend = limit
	return out
}

// HandleSegmentAck advances the window on a positive ack and rewinds
// nextToSend to retransmit from the acknowledged point on a negative ack.
// actualWindowSize lets the receiver shrink the window mid-transfer.
func (s *Sender) HandleSegmentAck(ackedSeq int, negative bool, actualWindowSize int) {
	if actualWindowSize > 0 {
		s.windowSize = actualWindowSize
	}
	if negative {
		s.nextToSend = ackedSeq
		return
	}
	if ackedSeq+1 > s.acked {
		s.acked = ackedSeq + 1
	}
	if s.nextToSend < s.acked {
		s.nextToSend = s.acked
	}
}

// Receiver reassembles an inbound segmented transfer, tracking the
// in-window / duplicate-in-window classification required before accepting
// a segment.
type Receiver struct {
	windowSize     int
	expectedSeq    int // next sequence number expected at the window base
	buf            map[int][]byte
	total          int // set once the final segment (MoreFollows=false) arrives
	highestInOrder int
}

// NewReceiver builds a Receiver with the given negotiated window size.
func NewReceiver(windowSize int) *Receiver {
	return &Receiver{windowSize: windowSize, buf: make(map[int][]byte)}
}

// InWindow reports whether seq falls within [expectedSeq, expectedSeq+windowSize).
func (r *Receiver) InWindow(seq int) bool {
	return seq >= r.expectedSeq && seq < r.expectedSeq+r.windowSize
}

// DuplicateInWindow reports whether seq has already been received.
func (r *Receiver) DuplicateInWindow(seq int) bool {
	_, ok := r.buf[seq]
	return ok
}

// ReceiveSegment stores an inbound segment. It returns whether the whole
// window is now complete (every sequence from expectedSeq up to
// expectedSeq+windowSize, or up to the final segment when that comes
// first, has arrived) so the caller knows to emit a Segment-ACK and slide
// the window.
func (r *Receiver) ReceiveSegment(seq int, data []byte, moreFollows bool) (windowComplete bool, err error) {
	if !r.InWindow(seq) {
		return false, bacerr.Abort(bacerr.AbortBufferOverflow)
	}
	if r.DuplicateInWindow(seq) {
		return false, nil
	}
	r.buf[seq] = data
	if !moreFollows {
		r.total = seq + 1
	}

	if r.windowComplete() {
		return true, nil
	}
	return false, nil
}

func (r *Receiver) windowComplete() bool {
	limit := r.expectedSeq + r.windowSize
	if r.total > 0 && r.total < limit {
		limit = r.total
	}
	for seq := r.expectedSeq; seq < limit; seq++ {
		if _, ok := r.buf[seq]; !ok {
			return false
		}
	}
	return limit > r.expectedSeq
}

// SlideWindow advances expectedSeq past every contiguous segment received
// so far, returning the new highest-in-order sequence number (for the
// Segment-ACK).
func (r *Receiver) SlideWindow() int {
	for {
		if _, ok := r.buf[r.expectedSeq]; !ok {
			break
		}
		r.highestInOrder = r.expectedSeq
		r.expectedSeq++
		if r.total > 0 && r.expectedSeq >= r.total {
			break
		}
	}
	return r.highestInOrder
}

// Complete reports whether every segment of the transfer has arrived.
func (r *Receiver) Complete() bool {
	return r.total > 0 && r.expectedSeq >= r.total
}

// Reassemble concatenates every segment in order. Call only once Complete
// reports true.
func (r *Receiver) Reassemble() []byte {
	var out []byte
	for seq := 0; seq < r.total; seq++ {
		out = append(out, r.buf[seq]...)
	}
	return out
}
