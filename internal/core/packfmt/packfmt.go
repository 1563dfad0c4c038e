// Package packfmt implements the fixed 192-byte binary record format used by
// pack files. Writers and readers must agree byte for byte: every numeric
// field is little-endian at a fixed offset, strings are length-prefixed into
// fixed buffers, and the trailing bytes are zero padding
package packfmt

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// RecordSize is the exact encoded size of one record
const RecordSize = 192

// Field capacities and sentinels
const (
	MaxPanoIDLen      = 120
	MaxSubdivisionLen = 12
	MaxSurfaceLen     = 12

	UnknownHeading   uint16 = 0xFFFF
	UnknownArrows    uint8  = 0xFF
	UnknownBuildings uint16 = 0xFFFF
	UnknownRoads     uint16 = 0xFFFF
	UnknownElevation int16  = math.MaxInt16
)

// Byte offsets within one encoded record
const (
	offPanoLen     = 0   // 1 byte length + 120 byte buffer
	offPano        = 1
	offLat         = 121 // int32, 1e-7 degrees
	offLng         = 125 // int32, 1e-7 degrees
	offSubLen      = 129 // 1 byte length + 12 byte buffer
	offSub         = 130
	offCaptureDays = 142 // uint16, days since 1970-01-01, 0 = unknown
	offFlags       = 144 // bit 0 scout, bit 1 heading present
	offHeading     = 145 // uint16 centi-degrees
	offSurfLen     = 147 // 1 byte length + 12 byte buffer
	offSurf        = 148
	offArrows      = 160 // uint8
	offBuildings   = 161 // uint16
	offRoads       = 163 // uint16
	offElevation   = 165 // int16 meters
	offHash        = 167 // uint64
	// 175..191 zero padding
)

const (
	flagScout   = 1 << 0
	flagHeading = 1 << 1
)

const (
	latLngScale  = 1e7
	headingScale = 100
)

// Record is one decoded location
type Record struct {
	PanoID      string
	Lat         float64
	Lng         float64
	Subdivision string

	// CaptureDays counts days since 1970-01-01; 0 means unknown
	CaptureDays uint16

	Scout   bool
	Heading *float64 // degrees, nil when unknown
	Surface string

	Arrows    *int
	Buildings *int
	Roads     *int
	Elevation *int // meters, may be negative

	// Hash is xxhash64 of PanoID. Encode recomputes it; it is never stored
	// independently of the id
	Hash uint64
}

// HashPanoID computes the stable 64-bit selection key for a panorama id
func HashPanoID(id string) uint64 { return xxhash.Sum64String(id) }

// CaptureDate resolves CaptureDays to a UTC date; ok is false when unknown
func (r Record) CaptureDate() (time.Time, bool) {
	if r.CaptureDays == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(r.CaptureDays)*86400, 0).UTC(), true
}

// CaptureYear returns the capture year, or nil when the date is unknown
func (r Record) CaptureYear() *int {
	d, ok := r.CaptureDate()
	if !ok {
		return nil
	}
	y := d.Year()
	return &y
}

// Encode serializes r into exactly RecordSize bytes.
// The content hash is recomputed from PanoID, never taken from r
func Encode(r Record) ([]byte, error) {
	if r.PanoID == "" {
		return nil, fmt.Errorf("packfmt: empty pano id")
	}
	if len(r.PanoID) > MaxPanoIDLen {
		return nil, fmt.Errorf("packfmt: pano id %d bytes exceeds %d", len(r.PanoID), MaxPanoIDLen)
	}
	if len(r.Subdivision) > MaxSubdivisionLen {
		return nil, fmt.Errorf("packfmt: subdivision %d bytes exceeds %d", len(r.Subdivision), MaxSubdivisionLen)
	}
	if len(r.Surface) > MaxSurfaceLen {
		return nil, fmt.Errorf("packfmt: surface %d bytes exceeds %d", len(r.Surface), MaxSurfaceLen)
	}
	if r.Heading != nil && (*r.Heading < 0 || *r.Heading >= 360) {
		return nil, fmt.Errorf("packfmt: heading %v out of range [0, 360)", *r.Heading)
	}
	if r.Arrows != nil && (*r.Arrows < 0 || *r.Arrows >= int(UnknownArrows)) {
		return nil, fmt.Errorf("packfmt: arrows %d out of range [0, %d)", *r.Arrows, UnknownArrows)
	}
	if r.Buildings != nil && (*r.Buildings < 0 || *r.Buildings >= int(UnknownBuildings)) {
		return nil, fmt.Errorf("packfmt: buildings %d out of range [0, %d)", *r.Buildings, UnknownBuildings)
	}
	if r.Roads != nil && (*r.Roads < 0 || *r.Roads >= int(UnknownRoads)) {
		return nil, fmt.Errorf("packfmt: roads %d out of range [0, %d)", *r.Roads, UnknownRoads)
	}
	if r.Elevation != nil && (*r.Elevation < math.MinInt16 || *r.Elevation >= int(UnknownElevation)) {
		return nil, fmt.Errorf("packfmt: elevation %d out of range [%d, %d)", *r.Elevation, math.MinInt16, UnknownElevation)
	}

	b := make([]byte, RecordSize)

	b[offPanoLen] = byte(len(r.PanoID))
	copy(b[offPano:], r.PanoID)

	binary.LittleEndian.PutUint32(b[offLat:], uint32(int32(math.Round(r.Lat*latLngScale))))
	binary.LittleEndian.PutUint32(b[offLng:], uint32(int32(math.Round(r.Lng*latLngScale))))

	b[offSubLen] = byte(len(r.Subdivision))
	copy(b[offSub:], r.Subdivision)

	binary.LittleEndian.PutUint16(b[offCaptureDays:], r.CaptureDays)

	var flags byte
	if r.Scout {
		flags |= flagScout
	}
	heading := UnknownHeading
	if r.Heading != nil {
		flags |= flagHeading
		heading = uint16(math.Round(*r.Heading * headingScale))
	}
	b[offFlags] = flags
	binary.LittleEndian.PutUint16(b[offHeading:], heading)

	b[offSurfLen] = byte(len(r.Surface))
	copy(b[offSurf:], r.Surface)

	b[offArrows] = UnknownArrows
	if r.Arrows != nil {
		b[offArrows] = uint8(*r.Arrows)
	}
	putOptU16(b[offBuildings:], r.Buildings, UnknownBuildings)
	putOptU16(b[offRoads:], r.Roads, UnknownRoads)

	elev := UnknownElevation
	if r.Elevation != nil {
		elev = int16(*r.Elevation)
	}
	binary.LittleEndian.PutUint16(b[offElevation:], uint16(elev))

	binary.LittleEndian.PutUint64(b[offHash:], HashPanoID(r.PanoID))

	return b, nil
}

// Decode parses exactly one record from the first RecordSize bytes of b
func Decode(b []byte) (Record, error) {
	var r Record
	if len(b) < RecordSize {
		return r, fmt.Errorf("packfmt: short buffer: %d bytes, need %d", len(b), RecordSize)
	}

	pano, err := readString(b, offPanoLen, offPano, MaxPanoIDLen, "pano id")
	if err != nil {
		return r, err
	}
	if pano == "" {
		return r, fmt.Errorf("packfmt: empty pano id")
	}
	r.PanoID = pano

	r.Lat = float64(int32(binary.LittleEndian.Uint32(b[offLat:]))) / latLngScale
	r.Lng = float64(int32(binary.LittleEndian.Uint32(b[offLng:]))) / latLngScale

	if r.Subdivision, err = readString(b, offSubLen, offSub, MaxSubdivisionLen, "subdivision"); err != nil {
		return Record{}, err
	}

	r.CaptureDays = binary.LittleEndian.Uint16(b[offCaptureDays:])

	flags := b[offFlags]
	r.Scout = flags&flagScout != 0
	if flags&flagHeading != 0 {
		h := float64(binary.LittleEndian.Uint16(b[offHeading:])) / headingScale
		r.Heading = &h
	}

	if r.Surface, err = readString(b, offSurfLen, offSurf, MaxSurfaceLen, "surface"); err != nil {
		return Record{}, err
	}

	if v := b[offArrows]; v != UnknownArrows {
		n := int(v)
		r.Arrows = &n
	}
	r.Buildings = getOptU16(b[offBuildings:], UnknownBuildings)
	r.Roads = getOptU16(b[offRoads:], UnknownRoads)

	if v := int16(binary.LittleEndian.Uint16(b[offElevation:])); v != UnknownElevation {
		n := int(v)
		r.Elevation = &n
	}

	r.Hash = binary.LittleEndian.Uint64(b[offHash:])

	return r, nil
}

// readString pulls a length-prefixed string out of its fixed buffer.
// A length over capacity or invalid UTF-8 marks the record corrupt
func readString(b []byte, offLen, off, cap int, field string) (string, error) {
	n := int(b[offLen])
	if n > cap {
		return "", fmt.Errorf("packfmt: %s length %d exceeds %d", field, n, cap)
	}
	s := string(b[off : off+n])
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("packfmt: %s is not valid utf-8", field)
	}
	return s, nil
}

func putOptU16(b []byte, v *int, unknown uint16) {
	u := unknown
	if v != nil {
		u = uint16(*v)
	}
	binary.LittleEndian.PutUint16(b, u)
}

func getOptU16(b []byte, unknown uint16) *int {
	v := binary.LittleEndian.Uint16(b)
	if v == unknown {
		return nil
	}
	n := int(v)
	return &n
}
