// Command quicrxd runs a minimal QUIC incoming-packet endpoint, exercising
// [quicrx.IncomingDispatcher] against a real UDP socket. It supplies
// no-op FrameDecoder/TLSDriver/Timers stand-ins: this module owns header
// parsing, decryption, and FEC recovery, not frame semantics or the
// handshake itself (§1's non-goals), so a demo driver's collaborators are
// necessarily trivial.
package main

import (
	"flag"
	"net"
	"time"

	"github.com/apex/log"

	"github.com/quicrxlabs/quicrx"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:14433", "UDP address to listen on")
	server := flag.Bool("server", true, "run in server mode")
	retryEnforced := flag.Bool("retry", false, "enforce the server retry token")
	pcapFile := flag.String("pcap", "", "optional PCAP trace of ingress datagrams")
	flag.Parse()

	logger := quicrx.NewApexLogger()

	addr := quicrx.Must1(net.ResolveUDPAddr("udp", *listen))
	conn := quicrx.Must1(net.ListenUDP("udp", addr))
	defer conn.Close()

	var resetSecret [32]byte
	quicrx.NewRandomSource().PublicRandom(resetSecret[:])
	var retryKey [32]byte
	quicrx.NewRandomSource().PublicRandom(retryKey[:])

	dispatcher := quicrx.NewIncomingDispatcher(quicrx.EndpointConfig{
		Logger:         logger,
		Table:          quicrx.NewConnectionTable(),
		Decoder:        nopFrameDecoder{},
		TLS:            nopTLSDriver{},
		Timers:         fixedTimers{interval: 25 * time.Millisecond},
		IsServer:       *server,
		LocalCIDLength: 8,
		RetryEnforced:  *retryEnforced,
		ResetSecret:    resetSecret[:],
		RetryKey:       retryKey[:],
	})

	incomingPacket := dispatcher.IncomingPacket
	if *pcapFile != "" {
		tracer := quicrx.NewTraceDumper(*pcapFile, logger)
		defer tracer.Close()
		incomingPacket = tracer.WrapIncomingPacket(incomingPacket)
	}

	log.Infof("quicrxd: listening on %s (server=%v)", *listen, *server)

	buf := make([]byte, 64*1024)
	for {
		n, addrFrom, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Warnf("quicrxd: ReadFromUDP: %s", err.Error())
			continue
		}
		status, created := incomingPacket(buf[:n], addrFrom, conn.LocalAddr(), 0, time.Now())
		if created {
			log.Debugf("quicrxd: accepted new connection from %s", addrFrom)
		}
		if status < 0 {
			log.Debugf("quicrxd: datagram from %s rejected", addrFrom)
		}
		for _, reply := range dispatcher.Outbox() {
			if _, err := conn.WriteToUDP(reply, addrFrom); err != nil {
				log.Warnf("quicrxd: WriteToUDP: %s", err.Error())
			}
		}
	}
}

// nopFrameDecoder is a stand-in [quicrx.FrameDecoder]: this module does not
// interpret frame bytes, so the demo driver just discards them.
type nopFrameDecoder struct{}

func (nopFrameDecoder) Decode(cnx *quicrx.Connection, bytes []byte, epoch quicrx.Epoch, now time.Time, path *quicrx.Path) error {
	return nil
}

func (nopFrameDecoder) DecodeClosing(cnx *quicrx.Connection, bytes []byte) (bool, error) {
	return false, nil
}

// nopTLSDriver is a stand-in [quicrx.TLSDriver].
type nopTLSDriver struct{}

func (nopTLSDriver) StreamProcess(cnx *quicrx.Connection) error { return nil }

func (nopTLSDriver) IsHandshakeComplete(cnx *quicrx.Connection) bool { return false }

// fixedTimers implements [quicrx.Timers] with a constant wake interval.
type fixedTimers struct {
	interval time.Duration
}

func (t fixedTimers) NextWakeTime(cnx *quicrx.Connection, now time.Time) time.Time {
	return now.Add(t.interval)
}
