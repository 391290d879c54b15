package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/sensorlink/internal/monitoring"
)

// pcapngMagic is the block type of a pcapng section header.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// pcapSource replays the TCP payload bytes of a recorded sensor session. It
// never times out and reports io.EOF once the capture is exhausted.
type pcapSource struct {
	f      *os.File
	r      packetReader
	port   layers.TCPPort
	parser gopacket.DecodeOptions

	pending []byte
	packets int
	matched int
}

// OpenPCAP opens a pcap or pcapng capture and replays the payloads of TCP
// segments whose source or destination port equals port. Segments are
// replayed in capture order; retransmissions are not removed.
func OpenPCAP(path string, port int) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header %s: %w", path, err)
	}

	var r packetReader
	if bytes.Equal(magic, pcapngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture %s: %w", path, err)
	}

	monitoring.Opsf("replaying capture %s (link %s, tcp port %d)", path, r.LinkType(), port)
	return &pcapSource{
		f:      f,
		r:      r,
		port:   layers.TCPPort(port),
		parser: gopacket.DecodeOptions{Lazy: true, NoCopy: true},
	}, nil
}

func (s *pcapSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		data, _, err := s.r.ReadPacketData()
		if err == io.EOF {
			monitoring.Diagf("capture exhausted: %d packets, %d matched tcp port %d", s.packets, s.matched, s.port)
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read capture packet: %w", err)
		}
		s.packets++

		packet := gopacket.NewPacket(data, s.r.LinkType(), s.parser)
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || (tcp.SrcPort != s.port && tcp.DstPort != s.port) {
			continue
		}
		if len(tcp.Payload) == 0 {
			continue
		}
		s.matched++
		s.pending = tcp.Payload
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// SetReadTimeout is a no-op: a capture never blocks.
func (s *pcapSource) SetReadTimeout(time.Duration) error {
	return nil
}

func (s *pcapSource) Close() error {
	return s.f.Close()
}
