package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"delivery-track/internal/geo"
)

// NMEAProvider reads NMEA 0183 sentences from a serial GPS receiver
// (u-blox NEO-M8N and anything else speaking standard NMEA).
type NMEAProvider struct {
	portPath string
	baudRate int
	port     serial.Port
	scanner  *bufio.Scanner
}

// NewNMEA creates a serial NMEA provider. The port is not opened until
// Connect.
func NewNMEA(portPath string, baudRate int) *NMEAProvider {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &NMEAProvider{portPath: portPath, baudRate: baudRate}
}

// newNMEAFromReader wires the parser to an arbitrary stream; used by tests.
func newNMEAFromReader(r io.Reader) *NMEAProvider {
	return &NMEAProvider{scanner: bufio.NewScanner(r)}
}

func (n *NMEAProvider) Name() string { return "nmea-serial" }

// Supported probes for the device node; no node means no GPS capability.
func (n *NMEAProvider) Supported() bool {
	if n.scanner != nil {
		return true
	}
	if strings.TrimSpace(n.portPath) == "" {
		return false
	}
	_, err := os.Stat(n.portPath)
	return err == nil
}

func (n *NMEAProvider) Connect() error {
	if n.scanner != nil {
		return nil
	}
	if !n.Supported() {
		return ErrUnsupported
	}
	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	if err != nil {
		return fmt.Errorf("gps: failed to open %s: %w", n.portPath, err)
	}
	_ = port.SetReadTimeout(200 * time.Millisecond)
	n.port = port
	n.scanner = bufio.NewScanner(port)
	return nil
}

func (n *NMEAProvider) Close() error {
	if n.port != nil {
		err := n.port.Close()
		n.port = nil
		n.scanner = nil
		return err
	}
	return nil
}

// Read scans sentences until it assembles a fresh valid fix or ctx expires.
// RMC carries position/speed/heading; a following GGA refines accuracy via
// HDOP. Cached fixes are never returned: every call starts from scratch.
func (n *NMEAProvider) Read(ctx context.Context) (geo.Sample, error) {
	if n.scanner == nil {
		return geo.Sample{}, ErrUnsupported
	}

	var fix rmcFix
	gotRMC := false

	for {
		if err := ctx.Err(); err != nil {
			return geo.Sample{}, fmt.Errorf("gps read: %w", err)
		}
		if !n.scanner.Scan() {
			if err := n.scanner.Err(); err != nil {
				return geo.Sample{}, fmt.Errorf("gps read: %w", err)
			}
			// serial read timeout or EOF on the stream
			if gotRMC {
				return fix.sample(), nil
			}
			return geo.Sample{}, ErrNoFix
		}

		line := strings.TrimSpace(n.scanner.Text())
		if !strings.HasPrefix(line, "$") || !validChecksum(line) {
			continue
		}

		switch {
		case strings.HasPrefix(line, "$GPRMC"), strings.HasPrefix(line, "$GNRMC"):
			f, ok := parseRMC(line)
			if !ok {
				continue
			}
			fix = f
			gotRMC = true
		case strings.HasPrefix(line, "$GPGGA"), strings.HasPrefix(line, "$GNGGA"):
			if !gotRMC {
				continue
			}
			if hdop, ok := parseGGAHDOP(line); ok {
				fix.hdop = hdop
			}
			return fix.sample(), nil
		}
	}
}

// rmcFix is one decoded RMC sentence plus the HDOP from its paired GGA.
type rmcFix struct {
	lat, lng float64
	speedKMH float64
	heading  float64
	hasSpeed bool
	hasHdg   bool
	hdop     float64
}

func (f rmcFix) sample() geo.Sample {
	s := geo.Sample{
		Latitude:   f.lat,
		Longitude:  f.lng,
		RecordedAt: time.Now().UTC(),
	}
	if f.hasSpeed {
		s.SpeedKMH = geo.Float(f.speedKMH)
	}
	if f.hasHdg {
		s.HeadingDegrees = geo.Float(f.heading)
	}
	if f.hdop > 0 {
		// HDOP times nominal GPS error (~5m) approximates horizontal accuracy
		s.AccuracyMeters = geo.Float(f.hdop * 5)
	}
	return s
}

// parseRMC decodes $xxRMC. Returns ok=false for void fixes.
//
//	$GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,...
func parseRMC(line string) (rmcFix, bool) {
	parts := splitSentence(line)
	if len(parts) < 10 {
		return rmcFix{}, false
	}
	if parts[2] != "A" {
		return rmcFix{}, false // V = void, receiver has no fix
	}

	var f rmcFix
	f.lat = parseCoord(parts[3], parts[4])
	f.lng = parseCoord(parts[5], parts[6])
	if f.lat == 0 && f.lng == 0 {
		return rmcFix{}, false
	}
	if spd, err := strconv.ParseFloat(parts[7], 64); err == nil {
		f.speedKMH = spd * 1.852 // knots to km/h
		f.hasSpeed = true
	}
	if hdg, err := strconv.ParseFloat(parts[8], 64); err == nil {
		f.heading = hdg
		f.hasHdg = true
	}
	return f, true
}

// parseGGAHDOP pulls the horizontal dilution field out of $xxGGA.
func parseGGAHDOP(line string) (float64, bool) {
	parts := splitSentence(line)
	if len(parts) < 9 {
		return 0, false
	}
	hdop, err := strconv.ParseFloat(parts[8], 64)
	if err != nil {
		return 0, false
	}
	return hdop, true
}

// splitSentence splits a sentence on commas, stripping "$" and the checksum.
func splitSentence(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseCoord converts NMEA ddmm.mmmm plus hemisphere to decimal degrees.
func parseCoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	min := val - deg*100
	result := deg + min/60
	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}

// validChecksum verifies the XOR checksum after "*".
func validChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 0 || idx+3 > len(line) {
		return false
	}
	var calc byte
	for i := 1; i < idx; i++ {
		calc ^= line[i]
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == calc
}
