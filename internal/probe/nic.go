// Package probe implements the NIC Probe: the one concrete Probe
// implementation that transmits a fixed raw frame every cycle and
// recovers hardware and software receive timestamps for the companion
// receiver Driver.
package probe

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rsi-robotics/rtcat-eval/internal/report"
)

// frameEtherType is the EtherCAT EtherType (0x88a4). Only the header
// is filled in; the frame body is zero padding, since the drive's
// actual payload shape is opaque to this package.
const frameEtherType = 0x88a4

// frameLen is the minimum Ethernet frame size, destination/source
// addresses plus EtherType plus a zero-padded body.
const frameLen = 60

// timestampingFlags requests hardware and software TX/RX timestamps
// plus the raw hardware clock, delivered as SCM_TIMESTAMPING ancillary
// data on every transmitted and received frame.
const timestampingFlags = unix.SOF_TIMESTAMPING_TX_HARDWARE |
	unix.SOF_TIMESTAMPING_RX_HARDWARE |
	unix.SOF_TIMESTAMPING_RAW_HARDWARE |
	unix.SOF_TIMESTAMPING_TX_SOFTWARE |
	unix.SOF_TIMESTAMPING_RX_SOFTWARE |
	unix.SOF_TIMESTAMPING_SOFTWARE

// Probe is the NIC Probe. The sender side calls Send, the receiver
// side calls Receive; both may run concurrently against the same fd
// because the kernel's socket send/receive queues are independently
// synchronized.
type Probe struct {
	fd      int
	ifindex int
	frame   []byte

	// HWDelta and SWDelta are populated only when verbose reporting is
	// requested; nil otherwise, per the spec's "two additional Timer
	// Reports" clause.
	HWDelta *report.Report
	SWDelta *report.Report

	// txHW and txSW are the kernel-reported hardware/software
	// transmit-completion timestamps for the most recently sent frame,
	// recovered from the socket error queue by Send. A delta is only
	// ever computed between two kernel timestamps, never against a
	// Go-process wall-clock read.
	txHW time.Time
	txSW time.Time

	rxIndex uint64
}

// Options configures a new Probe.
type Options struct {
	Interface string
	PeriodNS  uint64
	BucketNS  uint64
	Verbose   bool
}

// New opens and binds an AF_PACKET raw socket on the named interface
// and requests hardware and software timestamping on it.
func New(opts Options) (*Probe, error) {
	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("resolve interface %s: %w", opts.Interface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(frameEtherType)))
	if err != nil {
		return nil, fmt.Errorf("open raw socket: %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(frameEtherType),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind to interface %s: %w", opts.Interface, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, timestampingFlags); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("enable SO_TIMESTAMPING: %w", err)
	}

	p := &Probe{
		fd:      fd,
		ifindex: iface.Index,
		frame:   buildFrame(iface.HardwareAddr),
	}

	if opts.Verbose {
		p.HWDelta = report.New("HW delta", opts.PeriodNS, opts.BucketNS)
		p.SWDelta = report.New("SW delta", opts.PeriodNS, opts.BucketNS)
	}

	return p, nil
}

// Close releases the underlying raw socket.
func (p *Probe) Close() error {
	return unix.Close(p.fd)
}

// buildFrame constructs the fixed minimum-size frame sent every cycle:
// a broadcast destination, the interface's own source address, the
// EtherCAT EtherType, and a zero-padded body up to frameLen.
func buildFrame(src net.HardwareAddr) []byte {
	frame := make([]byte, frameLen)
	for i := 0; i < 6; i++ {
		frame[i] = 0xff
	}
	copy(frame[6:12], src)
	binary.BigEndian.PutUint16(frame[12:14], frameEtherType)
	return frame
}

// Send transmits the fixed frame once, then recovers the kernel's
// hardware and software TX-completion timestamps for it off the
// socket's error queue. It satisfies driver.Probe when wrapped by the
// sender side's adapter.
func (p *Probe) Send() error {
	dest := unix.SockaddrLinklayer{
		Protocol: htons(frameEtherType),
		Ifindex:  p.ifindex,
		Halen:    6,
	}
	copy(dest.Addr[:6], p.frame[0:6])

	if err := unix.Sendto(p.fd, p.frame, 0, &dest); err != nil {
		return err
	}

	p.recordTXTimestamps()
	return nil
}

// recordTXTimestamps pulls the just-sent frame's looped-back
// SCM_TIMESTAMPING completion off the socket error queue and stashes
// its hardware/software timestamps for Receive's delta calculation.
// A failure here is non-fatal to the cycle: it just leaves the
// previous TX timestamps in place, so the following Receive either
// pairs against a stale send or, on the very first cycle, skips the
// delta because txHW/txSW are still zero.
func (p *Probe) recordTXTimestamps() {
	oob := make([]byte, unix.CmsgSpace(int(unsafe.Sizeof(unix.ScmTimestamping{}))))

	_, oobn, _, _, err := unix.Recvmsg(p.fd, nil, oob, unix.MSG_ERRQUEUE)
	if err != nil {
		return
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return
	}

	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMPING {
			continue
		}
		ts := decodeScmTimestamping(m.Data)
		if !ts.hw.IsZero() {
			p.txHW = ts.hw
		}
		if !ts.sw.IsZero() {
			p.txSW = ts.sw
		}
	}
}

// Receive blocks until the corresponding frame returns and, when
// verbose reports are attached, records the hardware/software
// timestamp deltas. It returns false on any terminal condition: a
// read error, a link-down indication, or a socket closed out from
// under it.
func (p *Probe) Receive() bool {
	buf := make([]byte, frameLen)
	oob := make([]byte, unix.CmsgSpace(int(unsafe.Sizeof(unix.ScmTimestamping{}))))

	n, oobn, _, _, err := unix.Recvmsg(p.fd, buf, oob, 0)
	if err != nil {
		return false
	}
	if n == 0 {
		return false
	}

	if p.HWDelta != nil || p.SWDelta != nil {
		p.recordTimestamps(oob[:oobn], p.rxIndex)
	}
	p.rxIndex++

	return true
}

// recordTimestamps parses the SCM_TIMESTAMPING ancillary data attached
// to the just-received frame and, when attached reports exist, ingests
// the hardware and software receive deltas against the matching
// transmit-completion timestamps recovered by recordTXTimestamps. Both
// sides of every delta are kernel-sourced; no Go-process wall-clock
// read ever enters these numbers. sw and hw occupy index 0 and 2 of
// the three-slot scm_timestamping layout; index 1 is deprecated and
// unused by Linux.
func (p *Probe) recordTimestamps(oob []byte, index uint64) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return
	}

	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMPING {
			continue
		}
		ts := decodeScmTimestamping(m.Data)
		if p.SWDelta != nil && !ts.sw.IsZero() && !p.txSW.IsZero() {
			p.SWDelta.AddObservation(nonNegativeNanos(ts.sw.Sub(p.txSW)), index)
		}
		if p.HWDelta != nil && !ts.hw.IsZero() && !p.txHW.IsZero() {
			p.HWDelta.AddObservation(nonNegativeNanos(ts.hw.Sub(p.txHW)), index)
		}
	}
}

// nonNegativeNanos saturates a duration at zero before converting to
// nanoseconds, guarding against clock-source jitter producing a
// nominally negative receive-before-send delta.
func nonNegativeNanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d.Nanoseconds())
}

type scmTimestampingResult struct {
	sw time.Time
	hw time.Time
}

func decodeScmTimestamping(data []byte) scmTimestampingResult {
	var scm unix.ScmTimestamping
	size := int(unsafe.Sizeof(scm))
	if len(data) < size {
		return scmTimestampingResult{}
	}
	scm = *(*unix.ScmTimestamping)(unsafe.Pointer(&data[0]))

	return scmTimestampingResult{
		sw: timespecToTime(scm.Ts[0]),
		hw: timespecToTime(scm.Ts[2]),
	}
}

func timespecToTime(ts unix.Timespec) time.Time {
	if ts.Sec == 0 && ts.Nsec == 0 {
		return time.Time{}
	}
	return time.Unix(ts.Sec, ts.Nsec)
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// SenderProbe adapts Probe.Send to the Driver's Probe interface for the
// sender-side thread. A send error is treated as a terminal condition.
type SenderProbe struct{ Probe *Probe }

func (s SenderProbe) Invoke() bool {
	return s.Probe.Send() == nil
}

// ReceiverProbe adapts Probe.Receive to the Driver's Probe interface
// for the receiver-side thread.
type ReceiverProbe struct{ Probe *Probe }

func (r ReceiverProbe) Invoke() bool {
	return r.Probe.Receive()
}
