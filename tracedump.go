package quicrx

//
// TraceDumper (§6's observability seam, supplementing §4.4's IncomingPacket
// entry point): records every ingress datagram to a PCAP file.
//
// Grounded on the teacher's pcap.go, which wraps a [NIC] and intercepts its
// ReadFrameNonblocking/WriteFrame calls into a background writer goroutine
// fed by a buffered channel. This generalizes that NIC-wrapping shape to
// wrap an [IncomingDispatcher]'s IncomingPacket entry point instead, since
// this package has no NIC abstraction of its own; capture is still driven
// by UDP/IP synthetic headers the way the teacher's dissect.go builds them
// for injected traffic, so the resulting PCAP loads in ordinary tools.
//

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// TraceDumper captures ingress datagrams passed to a wrapped
// [IncomingDispatcher] into a PCAP file. The zero value is invalid; use
// [NewTraceDumper].
type TraceDumper struct {
	cancel    context.CancelFunc
	closeOnce sync.Once
	joined    chan any
	logger    Logger
	pich      chan *tracedDatagram
}

// tracedDatagram is one captured ingress datagram.
type tracedDatagram struct {
	addrFrom net.Addr
	addrTo   net.Addr
	payload  []byte
}

// NewTraceDumper opens filename and starts the background writer goroutine.
// Call [TraceDumper.Close] to flush and join it.
func NewTraceDumper(filename string, logger Logger) *TraceDumper {
	const manyDatagrams = 4096
	ctx, cancel := context.WithCancel(context.Background())
	td := &TraceDumper{
		cancel: cancel,
		joined: make(chan any),
		logger: logger,
		pich:   make(chan *tracedDatagram, manyDatagrams),
	}
	go td.loop(ctx, filename)
	return td
}

// WrapIncomingPacket returns an IncomingPacket-shaped function that records
// bytes to the trace before invoking next, the same interception shape the
// teacher's pcapDumperNIC applies to ReadFrameNonblocking/WriteFrame.
func (td *TraceDumper) WrapIncomingPacket(next func([]byte, net.Addr, net.Addr, int, time.Time) (int, bool)) func([]byte, net.Addr, net.Addr, int, time.Time) (int, bool) {
	return func(bytes []byte, addrFrom, addrTo net.Addr, ifIndex int, now time.Time) (int, bool) {
		td.deliver(bytes, addrFrom, addrTo)
		return next(bytes, addrFrom, addrTo, ifIndex, now)
	}
}

func (td *TraceDumper) deliver(payload []byte, addrFrom, addrTo net.Addr) {
	const captureLength = 4096
	n := len(payload)
	if n > captureLength {
		n = captureLength
	}
	dg := &tracedDatagram{
		addrFrom: addrFrom,
		addrTo:   addrTo,
		payload:  append([]byte{}, payload[:n]...),
	}
	select {
	case td.pich <- dg:
	default:
		// drop from the capture rather than block the receive path
	}
}

func (td *TraceDumper) loop(ctx context.Context, filename string) {
	defer close(td.joined)

	filep, err := os.Create(filename)
	if err != nil {
		td.logger.Warnf("quicrx: TraceDumper: os.Create: %s", err.Error())
		return
	}
	defer func() {
		if err := filep.Close(); err != nil {
			td.logger.Warnf("quicrx: TraceDumper: filep.Close: %s", err.Error())
		}
	}()

	w := pcapgo.NewWriter(filep)
	const largeSnapLen = 262144
	if err := w.WriteFileHeader(largeSnapLen, layers.LinkTypeIPv4); err != nil {
		td.logger.Warnf("quicrx: TraceDumper: WriteFileHeader: %s", err.Error())
		return
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case dg := <-td.pich:
					td.writeEntry(dg, w)
				default:
					return
				}
			}
		case dg := <-td.pich:
			td.writeEntry(dg, w)
		}
	}
}

func (td *TraceDumper) writeEntry(dg *tracedDatagram, w *pcapgo.Writer) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	srcIP, srcPort := addrParts(dg.addrFrom)
	dstIP, dstPort := addrParts(dg.addrTo)

	ipv4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ipv4); err != nil {
		td.logger.Warnf("quicrx: TraceDumper: SetNetworkLayerForChecksum: %s", err.Error())
		return
	}

	if err := gopacket.SerializeLayers(buf, opts, ipv4, udp, gopacket.Payload(dg.payload)); err != nil {
		td.logger.Warnf("quicrx: TraceDumper: SerializeLayers: %s", err.Error())
		return
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := w.WritePacket(ci, buf.Bytes()); err != nil {
		td.logger.Warnf("quicrx: TraceDumper: WritePacket: %s", err.Error())
	}
}

// addrParts extracts an IP and port from addr, defaulting to 0.0.0.0:0 for
// anything that isn't a *net.UDPAddr (e.g. a nil addr from a unit test).
func addrParts(addr net.Addr) (net.IP, int) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp == nil {
		return net.IPv4zero, 0
	}
	if v4 := udp.IP.To4(); v4 != nil {
		return v4, udp.Port
	}
	return udp.IP, udp.Port
}

// Close flushes and joins the background writer.
func (td *TraceDumper) Close() error {
	td.closeOnce.Do(func() {
		td.cancel()
		td.logger.Debugf("quicrx: TraceDumper: awaiting for background writer to finish writing")
		<-td.joined
	})
	return nil
}
